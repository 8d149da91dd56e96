package entity

import (
	"time"

	"github.com/anthill1650-eng/Medscan/constants"
)

// Page is one page of a scanned document. Order is meaningful: Page holds the
// zero-based position and the slice a page travels in matches document order.
type Page struct {
	ID     string `json:"id"`
	URI    string `json:"uri"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Page   int    `json:"page"`
	Text   string `json:"text"`
}

// DocResult is the processed result of a document. It is the body of the
// upload response and, once processing finishes, the result field of the
// status response.
type DocResult struct {
	DocID   string              `json:"docId"`
	Status  constants.DocStatus `json:"status"`
	Pages   []Page              `json:"pages"`
	Summary string              `json:"summary,omitempty"`
	Labs    *LabReport          `json:"labs,omitempty"`
}

// StatusResponse is the body of GET /documents/{docID}.
type StatusResponse struct {
	DocID  string              `json:"docId"`
	Status constants.DocStatus `json:"status"`
	Result *DocResult          `json:"result"`
	Error  *string             `json:"error"`
}

// Document represents a stored document row for transfer between layers.
type Document struct {
	ID        string              `json:"id"`
	Status    constants.DocStatus `json:"status"`
	Filename  string              `json:"filename"`
	ErrorMsg  string              `json:"error_message,omitempty"`
	OCRText   string              `json:"ocr_text,omitempty"`
	Result    *DocResult          `json:"result,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}
