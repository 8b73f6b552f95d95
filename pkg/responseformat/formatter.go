package responseformat

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/vmihailenco/msgpack/v5"
)

// MsgPackContentType is the media type used for MessagePack bodies
const MsgPackContentType = "application/x-msgpack"

// Formatter handles encoding and writing responses in JSON or MessagePack format
type Formatter struct {
	// MaxBodyBytes bounds request bodies read by DecodeRequest; 0 means no limit
	MaxBodyBytes int64
}

// NewFormatter creates a new response formatter
func NewFormatter() *Formatter {
	return &Formatter{}
}

// WantsMsgPack reports whether the client asked for MessagePack, either with
// format=msgpack or an Accept header
func WantsMsgPack(req *http.Request) bool {
	if req.URL.Query().Get("format") == "msgpack" {
		return true
	}
	mediaType, _, _ := mime.ParseMediaType(req.Header.Get("Accept"))
	return mediaType == MsgPackContentType
}

// WriteResponse writes data with a 200 status in the format the client asked for.
// JSON is the default.
func (f *Formatter) WriteResponse(w http.ResponseWriter, req *http.Request, data any, headers map[string]string) error {
	return f.WriteStatus(w, req, http.StatusOK, data, headers)
}

// WriteStatus writes data with the given status code
func (f *Formatter) WriteStatus(w http.ResponseWriter, req *http.Request, status int, data any, headers map[string]string) error {
	for k, v := range headers {
		w.Header().Set(k, v)
	}

	w.Header().Set("Access-Control-Allow-Origin", "*")

	if WantsMsgPack(req) {
		return f.writeMsgPack(w, status, data)
	}
	return f.writeJSON(w, status, data)
}

// ErrorBody is the payload of every error response
type ErrorBody struct {
	Error  string `json:"error"`
	Detail any    `json:"detail,omitempty"`
}

// WriteError writes an error response
func (f *Formatter) WriteError(w http.ResponseWriter, req *http.Request, status int, err error, detail any) error {
	return f.WriteStatus(w, req, status, ErrorBody{Error: err.Error(), Detail: detail}, nil)
}

// DecodeRequest decodes a JSON or MessagePack request body into v, chosen by
// Content-Type
func (f *Formatter) DecodeRequest(req *http.Request, v any) error {
	var body io.Reader = req.Body
	if f.MaxBodyBytes > 0 {
		body = io.LimitReader(req.Body, f.MaxBodyBytes)
	}

	mediaType, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	switch mediaType {
	case MsgPackContentType:
		decoder := msgpack.NewDecoder(body)
		decoder.SetCustomStructTag("json")
		if err := decoder.Decode(v); err != nil {
			return fmt.Errorf("invalid msgpack body: %w", err)
		}
	case "", "application/json":
		decoder := json.NewDecoder(body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(v); err != nil {
			return fmt.Errorf("invalid json body: %w", err)
		}
	default:
		return fmt.Errorf("unsupported content type %q", mediaType)
	}
	return nil
}

func (f *Formatter) writeJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

func (f *Formatter) writeMsgPack(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", MsgPackContentType)
	w.WriteHeader(status)
	encoder := msgpack.NewEncoder(w)
	encoder.SetCustomStructTag("json") // Use json tags for MessagePack
	return encoder.Encode(data)
}
