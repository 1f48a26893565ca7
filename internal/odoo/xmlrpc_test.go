package odoo

import (
	"strings"
	"testing"
	"time"
)

func TestMarshalMethodCall(t *testing.T) {
	data, err := marshalMethodCall("execute_kw", []interface{}{
		"db", int64(2), "secret", "res.partner", "search",
		[]interface{}{[]interface{}{[]interface{}{"is_company", "=", true}}},
	})
	if err != nil {
		t.Fatalf("marshalMethodCall: %v", err)
	}
	body := string(data)

	for _, want := range []string{
		"<methodName>execute_kw</methodName>",
		"<string>res.partner</string>",
		"<int>2</int>",
		"<boolean>1</boolean>",
		"<array><data>",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("request body missing %q:\n%s", want, body)
		}
	}
}

func TestMarshalNilAsFalse(t *testing.T) {
	data, err := marshalMethodCall("write", []interface{}{
		map[string]interface{}{"parent_id": nil},
	})
	if err != nil {
		t.Fatalf("marshalMethodCall: %v", err)
	}
	// Odoo's null convention on the wire.
	if !strings.Contains(string(data), "<boolean>0</boolean>") {
		t.Errorf("nil should encode as boolean 0:\n%s", data)
	}
}

func TestMarshalEscapesText(t *testing.T) {
	data, err := marshalMethodCall("create", []interface{}{"<script>&"})
	if err != nil {
		t.Fatalf("marshalMethodCall: %v", err)
	}
	if strings.Contains(string(data), "<script>") {
		t.Errorf("text not escaped:\n%s", data)
	}
}

func TestMarshalTime(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	data, err := marshalMethodCall("write", []interface{}{ts})
	if err != nil {
		t.Fatalf("marshalMethodCall: %v", err)
	}
	if !strings.Contains(string(data), "<dateTime.iso8601>20250314T09:26:53</dateTime.iso8601>") {
		t.Errorf("time encoding wrong:\n%s", data)
	}
}

func TestMarshalUnsupportedType(t *testing.T) {
	type opaque struct{ x int }
	if _, err := marshalMethodCall("create", []interface{}{opaque{1}}); err == nil {
		t.Error("expected error for unsupported type")
	}
}

func TestParseMethodResponseScalar(t *testing.T) {
	res, err := parseMethodResponse([]byte(`<?xml version="1.0"?>
<methodResponse><params><param><value><int>7</int></value></param></params></methodResponse>`))
	if err != nil {
		t.Fatalf("parseMethodResponse: %v", err)
	}
	if res != int64(7) {
		t.Errorf("res = %v (%T), want int64(7)", res, res)
	}
}

func TestParseMethodResponseBareString(t *testing.T) {
	// A <value> without a type element is a string per the XML-RPC spec.
	res, err := parseMethodResponse([]byte(`<?xml version="1.0"?>
<methodResponse><params><param><value>hello</value></param></params></methodResponse>`))
	if err != nil {
		t.Fatalf("parseMethodResponse: %v", err)
	}
	if res != "hello" {
		t.Errorf("res = %v, want %q", res, "hello")
	}
}

func TestParseMethodResponseStructArray(t *testing.T) {
	res, err := parseMethodResponse([]byte(`<?xml version="1.0"?>
<methodResponse><params><param><value><array><data>
  <value><struct>
    <member><name>id</name><value><int>10</int></value></member>
    <member><name>name</name><value><string>Acme</string></value></member>
    <member><name>active</name><value><boolean>1</boolean></value></member>
  </struct></value>
</data></array></value></param></params></methodResponse>`))
	if err != nil {
		t.Fatalf("parseMethodResponse: %v", err)
	}

	arr, ok := res.([]interface{})
	if !ok || len(arr) != 1 {
		t.Fatalf("res = %v (%T)", res, res)
	}
	rec, ok := arr[0].(map[string]interface{})
	if !ok {
		t.Fatalf("element = %T", arr[0])
	}
	if rec["id"] != int64(10) || rec["name"] != "Acme" || rec["active"] != true {
		t.Errorf("record = %v", rec)
	}
}

func TestParseMethodResponseFault(t *testing.T) {
	_, err := parseMethodResponse([]byte(`<?xml version="1.0"?>
<methodResponse><fault><value><struct>
  <member><name>faultCode</name><value><int>2</int></value></member>
  <member><name>faultString</name><value><string>Access Denied</string></value></member>
</struct></value></fault></methodResponse>`))
	if err == nil {
		t.Fatal("expected fault error")
	}
	fault, ok := err.(*Fault)
	if !ok {
		t.Fatalf("error = %T, want *Fault", err)
	}
	if fault.Code != 2 || fault.Message != "Access Denied" {
		t.Errorf("fault = %+v", fault)
	}
}
