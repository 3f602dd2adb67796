package documents

import (
	"github.com/JaimeStill/tally/pkg/query"
	"github.com/JaimeStill/tally/pkg/repository"
)

const (
	table  = "public.documents"
	schema = "public"
)

var projection = query.
	NewProjectionMap(schema, "documents", "d").
	Project("id", "id").
	Project("file_name", "file_name").
	Project("raw_text", "raw_text").
	Project("extracted_details", "extracted_details").
	Project("classification", "classification").
	Project("gl_classification", "gl_classification").
	Project("posted_doc_entry", "posted_doc_entry").
	Project("version", "version").
	Project("uploaded_at", "uploaded_at").
	Project("updated_at", "updated_at")

// scanner returns a scan function for the columns of p, in projection order.
func scanner(p *query.ProjectionMap) repository.ScanFunc[Document] {
	names := p.ViewNames()

	return func(s repository.Scanner) (Document, error) {
		var (
			d           Document
			details     []byte
			withDetails bool
		)

		dests := make([]any, len(names))
		for i, name := range names {
			switch name {
			case "id":
				dests[i] = &d.ID
			case "file_name":
				dests[i] = &d.FileName
			case "raw_text":
				dests[i] = &d.RawText
			case "extracted_details":
				dests[i] = &details
				withDetails = true
			case "classification":
				dests[i] = &d.Classification
			case "gl_classification":
				dests[i] = &d.GLClassification
			case "posted_doc_entry":
				dests[i] = &d.PostedDocEntry
			case "version":
				dests[i] = &d.Version
			case "uploaded_at":
				dests[i] = &d.UploadedAt
			case "updated_at":
				dests[i] = &d.UpdatedAt
			}
		}

		if err := s.Scan(dests...); err != nil {
			return d, err
		}

		if withDetails {
			d.decodeDetails(details)
		}
		return d, nil
	}
}
