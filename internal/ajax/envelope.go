package ajax

import (
	"encoding/json"
	"errors"
	"net/http"

	"sitesetup/internal/contact"
	"sitesetup/internal/logging"
	"sitesetup/internal/transparency"
)

// envelope is the response body of every ajax call.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

// errorData is the data of a failed call.
type errorData struct {
	Message  string               `json:"message"`
	Category string               `json:"category"`
	Retry    bool                 `json:"retry"`
	Fields   []contact.FieldError `json:"fields,omitempty"`
	Result   interface{}          `json:"result,omitempty"`
}

// message is the data of calls that only report a sentence.
type message struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	data, err := json.Marshal(body)
	if err != nil {
		logging.Get(logging.CategoryHTTP).Error("Failed to marshal response: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeSuccess(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

// writeError classifies err. Permission failures are fatal and answered with
// 403; everything else is a 200 with success=false so the UI can offer a retry.
// partial is included when the handler produced a result alongside the error.
func writeError(w http.ResponseWriter, err error, partial interface{}) transparency.ErrorCategory {
	ce := transparency.ClassifyError(err)
	data := errorData{
		Message:  ce.UserMessage(),
		Category: ce.Category.String(),
		Retry:    ce.Category.Retryable(),
		Result:   partial,
	}
	var ve *contact.ValidationError
	if errors.As(err, &ve) {
		data.Fields = ve.Fields
	}

	status := http.StatusOK
	if ce.Category.Fatal() {
		status = http.StatusForbidden
	}
	writeJSON(w, status, envelope{Success: false, Data: data})
	return ce.Category
}

func writeFailure(w http.ResponseWriter, status int, category transparency.ErrorCategory, msg string) {
	writeJSON(w, status, envelope{Success: false, Data: errorData{
		Message:  msg,
		Category: category.String(),
		Retry:    category.Retryable(),
	}})
}
