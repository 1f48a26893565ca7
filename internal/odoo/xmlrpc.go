package odoo

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// XML-RPC codec for the subset of the protocol Odoo speaks. Requests are
// built with a buffer writer; responses are decoded through encoding/xml
// into loosely typed values (int64, float64, bool, string, time.Time,
// []interface{}, map[string]interface{}).

const xmlrpcTimeLayout = "20060102T15:04:05"

func marshalMethodCall(method string, params []interface{}) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(xml.Header)
	b.WriteString("<methodCall><methodName>")
	if err := xml.EscapeText(&b, []byte(method)); err != nil {
		return nil, err
	}
	b.WriteString("</methodName><params>")
	for _, p := range params {
		b.WriteString("<param>")
		if err := writeValue(&b, p); err != nil {
			return nil, err
		}
		b.WriteString("</param>")
	}
	b.WriteString("</params></methodCall>")
	return b.Bytes(), nil
}

func writeValue(b *bytes.Buffer, v interface{}) error {
	b.WriteString("<value>")
	defer b.WriteString("</value>")

	switch t := v.(type) {
	case nil:
		// Odoo represents null as boolean false on the wire.
		b.WriteString("<boolean>0</boolean>")
		return nil
	case bool:
		if t {
			b.WriteString("<boolean>1</boolean>")
		} else {
			b.WriteString("<boolean>0</boolean>")
		}
		return nil
	case int:
		b.WriteString("<int>" + strconv.Itoa(t) + "</int>")
		return nil
	case int32:
		b.WriteString("<int>" + strconv.FormatInt(int64(t), 10) + "</int>")
		return nil
	case int64:
		b.WriteString("<int>" + strconv.FormatInt(t, 10) + "</int>")
		return nil
	case float64:
		b.WriteString("<double>" + strconv.FormatFloat(t, 'f', -1, 64) + "</double>")
		return nil
	case float32:
		b.WriteString("<double>" + strconv.FormatFloat(float64(t), 'f', -1, 32) + "</double>")
		return nil
	case string:
		b.WriteString("<string>")
		if err := xml.EscapeText(b, []byte(t)); err != nil {
			return err
		}
		b.WriteString("</string>")
		return nil
	case time.Time:
		b.WriteString("<dateTime.iso8601>" + t.Format(xmlrpcTimeLayout) + "</dateTime.iso8601>")
		return nil
	case []byte:
		b.WriteString("<base64>" + base64.StdEncoding.EncodeToString(t) + "</base64>")
		return nil
	}

	// Slices and maps of any element type (domains are nested slices).
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		b.WriteString("<array><data>")
		for i := 0; i < rv.Len(); i++ {
			if err := writeValue(b, rv.Index(i).Interface()); err != nil {
				return err
			}
		}
		b.WriteString("</data></array>")
		return nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("xmlrpc: map keys must be strings, got %s", rv.Type().Key())
		}
		b.WriteString("<struct>")
		for _, k := range rv.MapKeys() {
			b.WriteString("<member><name>")
			if err := xml.EscapeText(b, []byte(k.String())); err != nil {
				return err
			}
			b.WriteString("</name>")
			if err := writeValue(b, rv.MapIndex(k).Interface()); err != nil {
				return err
			}
			b.WriteString("</member>")
		}
		b.WriteString("</struct>")
		return nil
	}

	return fmt.Errorf("xmlrpc: unsupported value type %T", v)
}

// ---------------------------------------------------------------------------
// Response decoding
// ---------------------------------------------------------------------------

type xmlResponse struct {
	XMLName xml.Name   `xml:"methodResponse"`
	Params  []xmlValue `xml:"params>param>value"`
	Fault   *xmlValue  `xml:"fault>value"`
}

type xmlValue struct {
	Int      *string    `xml:"int"`
	I4       *string    `xml:"i4"`
	Boolean  *string    `xml:"boolean"`
	Str      *string    `xml:"string"`
	Double   *string    `xml:"double"`
	DateTime *string    `xml:"dateTime.iso8601"`
	Base64   *string    `xml:"base64"`
	Array    *xmlArray  `xml:"array"`
	Struct   *xmlStruct `xml:"struct"`
	Nil      *struct{}  `xml:"nil"`
	Raw      string     `xml:",chardata"`
}

type xmlArray struct {
	Values []xmlValue `xml:"data>value"`
}

type xmlStruct struct {
	Members []xmlMember `xml:"member"`
}

type xmlMember struct {
	Name  string   `xml:"name"`
	Value xmlValue `xml:"value"`
}

// parseMethodResponse decodes a methodResponse body. A remote fault is
// returned as a *Fault error so callers can distinguish it from transport
// failures.
func parseMethodResponse(data []byte) (interface{}, error) {
	var resp xmlResponse
	if err := xml.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("xmlrpc: decode response: %w", err)
	}

	if resp.Fault != nil {
		fv, err := decodeValue(*resp.Fault)
		if err != nil {
			return nil, fmt.Errorf("xmlrpc: decode fault: %w", err)
		}
		return nil, faultFromValue(fv)
	}

	if len(resp.Params) == 0 {
		return nil, nil
	}
	return decodeValue(resp.Params[0])
}

func faultFromValue(v interface{}) *Fault {
	f := &Fault{Message: "unknown fault"}
	m, ok := v.(map[string]interface{})
	if !ok {
		return f
	}
	if code, ok := m["faultCode"].(int64); ok {
		f.Code = code
	}
	if msg, ok := m["faultString"].(string); ok {
		f.Message = msg
	}
	return f
}

func decodeValue(v xmlValue) (interface{}, error) {
	switch {
	case v.Nil != nil:
		return nil, nil
	case v.Int != nil:
		return strconv.ParseInt(strings.TrimSpace(*v.Int), 10, 64)
	case v.I4 != nil:
		return strconv.ParseInt(strings.TrimSpace(*v.I4), 10, 64)
	case v.Boolean != nil:
		s := strings.TrimSpace(*v.Boolean)
		return s == "1" || s == "true", nil
	case v.Double != nil:
		return strconv.ParseFloat(strings.TrimSpace(*v.Double), 64)
	case v.Str != nil:
		return *v.Str, nil
	case v.DateTime != nil:
		return time.Parse(xmlrpcTimeLayout, strings.TrimSpace(*v.DateTime))
	case v.Base64 != nil:
		return base64.StdEncoding.DecodeString(strings.TrimSpace(*v.Base64))
	case v.Array != nil:
		out := make([]interface{}, 0, len(v.Array.Values))
		for _, el := range v.Array.Values {
			dv, err := decodeValue(el)
			if err != nil {
				return nil, err
			}
			out = append(out, dv)
		}
		return out, nil
	case v.Struct != nil:
		out := make(map[string]interface{}, len(v.Struct.Members))
		for _, m := range v.Struct.Members {
			dv, err := decodeValue(m.Value)
			if err != nil {
				return nil, err
			}
			out[m.Name] = dv
		}
		return out, nil
	default:
		// XML-RPC treats a bare <value> with no type element as a string.
		return strings.TrimSpace(v.Raw), nil
	}
}
