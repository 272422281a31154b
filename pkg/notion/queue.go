package notion

import (
	"context"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// ReviewEntry is one row pushed to the manual review queue database.
type ReviewEntry struct {
	NPI       string
	Name      string
	Priority  int
	Status    string
	AlertType string
	Notes     string
}

// PublishReviewEntry creates a page for the entry in the review queue
// database. The database is expected to carry Name (title), NPI, Priority,
// Status, and Notes properties.
func PublishReviewEntry(ctx context.Context, c Client, dbID string, entry ReviewEntry) (*notionapi.Page, error) {
	now := notionapi.Date(time.Now())

	notes := entry.Notes
	if len(notes) > 1900 {
		notes = notes[:1900]
	}

	page, err := c.CreatePage(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(dbID),
		},
		Properties: notionapi.Properties{
			"Name": notionapi.TitleProperty{
				Title: []notionapi.RichText{{Text: &notionapi.Text{Content: entry.Name}}},
			},
			"NPI": notionapi.RichTextProperty{
				RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: entry.NPI}}},
			},
			"Priority": notionapi.NumberProperty{
				Number: float64(entry.Priority),
			},
			"Status": notionapi.StatusProperty{
				Status: notionapi.Status{Name: entry.Status},
			},
			"Alert Type": notionapi.RichTextProperty{
				RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: entry.AlertType}}},
			},
			"Notes": notionapi.RichTextProperty{
				RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: notes}}},
			},
			"Queued": notionapi.DateProperty{
				Date: &notionapi.DateObject{Start: &now},
			},
		},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "notion: publish review entry %s", entry.NPI)
	}
	return page, nil
}
