package response

import (
	"fmt"
	"io"
	"time"

	jsoniter "github.com/json-iterator/go"

	customError "github.com/segyhp/lending-ledger/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Response struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type ErrorResponse struct {
	Success   bool      `json:"success"`
	Code      string    `json:"code"`
	Error     string    `json:"error"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Renderer writes command results either as a JSON envelope or as text.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	asJSON bool
	now    func() time.Time
}

func NewRenderer(out, errOut io.Writer, asJSON bool) *Renderer {
	return &Renderer{out: out, errOut: errOut, asJSON: asJSON, now: time.Now}
}

// Success renders data with an optional message.
func (r *Renderer) Success(message string, data interface{}) error {
	if r.asJSON {
		return r.encode(r.out, Response{
			Success:   true,
			Message:   message,
			Data:      data,
			Timestamp: r.now(),
		})
	}

	if message != "" {
		if _, err := fmt.Fprintln(r.out, message); err != nil {
			return err
		}
	}
	if data == nil {
		return nil
	}
	return writeText(r.out, data)
}

// Error renders err with its business code. Storage failures get a generic
// message so driver details stay out of the main line.
func (r *Renderer) Error(err error) error {
	code := customError.Code(err)
	if code == "" {
		code = "INTERNAL_ERROR"
	}

	message := "Operation rejected"
	if customError.IsStorage(err) {
		message = "Storage is unavailable, contact the operator"
	}

	if r.asJSON {
		return r.encode(r.errOut, ErrorResponse{
			Success:   false,
			Code:      code,
			Error:     err.Error(),
			Message:   message,
			Timestamp: r.now(),
		})
	}

	_, werr := fmt.Fprintf(r.errOut, "%s: %v\n", message, err)
	return werr
}

func (r *Renderer) encode(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
