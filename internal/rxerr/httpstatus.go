package rxerr

import "net/http"

// descriptor mirrors the teacher's registry/api/errcode.ErrorDescriptor:
// a fixed HTTP status per error kind, looked up once at boundary time
// rather than carried by the error value itself.
type descriptor struct {
	Code   string
	Status int
}

var descriptors = map[Kind]descriptor{
	Locator:      {Code: "LOCATOR_INVALID", Status: http.StatusBadRequest},
	Manifest:     {Code: "MANIFEST_INVALID", Status: http.StatusBadRequest},
	Content:      {Code: "CONTENT_INVALID", Status: http.StatusBadRequest},
	Registry:     {Code: "REGISTRY_ERROR", Status: http.StatusNotFound},
	ResourceType: {Code: "TYPE_ERROR", Status: http.StatusBadRequest},
	Transport:    {Code: "TRANSPORT_ERROR", Status: http.StatusInternalServerError},
}

// digestMismatchStatus overrides Registry's default 404: a mismatch means
// the resource exists but failed verification, which is a conflict, not
// an absence.
const digestMismatchStatus = http.StatusConflict

// Envelope is the JSON body the HTTP server writes for any error,
// {"error": <kind>, "message": <string>} per §6.
type Envelope struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HTTPStatus returns the status code and JSON envelope for err, falling
// back to 500/"UNKNOWN" for errors outside the taxonomy.
func HTTPStatus(err error) (int, Envelope) {
	e, ok := err.(*Error)
	if !ok {
		return http.StatusInternalServerError, Envelope{Error: "UNKNOWN", Message: err.Error()}
	}
	d, ok := descriptors[e.Kind]
	if !ok {
		d = descriptor{Code: "UNKNOWN", Status: http.StatusInternalServerError}
	}
	status := d.Status
	if e.Kind == Registry && e.Reason == "digest-mismatch" {
		status = digestMismatchStatus
	}
	if e.Kind == Registry && e.Reason == "not-found" {
		status = http.StatusNotFound
	}
	return status, Envelope{Error: d.Code, Message: e.Error()}
}
