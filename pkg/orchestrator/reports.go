package orchestrator

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/psantana5/sitesync/pkg/models"
)

// PhotoUpload is one image attached to a progress report
type PhotoUpload struct {
	Name    string
	Caption string
	Content io.Reader
}

// PhotoFailure records a photo that could not be uploaded or linked
type PhotoFailure struct {
	Name string
	Err  error
}

// ReportResult is the stored report with the photos that made it through
type ReportResult struct {
	Report   models.ProgressReport
	Photos   []models.ReportPhoto
	Failures []PhotoFailure
}

// SubmitProgressReport stores a report dated today and attaches each photo by
// uploading it and linking the returned URL. A failed photo is logged and
// reported in the result; the report itself still counts as submitted.
func (o *Orchestrator) SubmitProgressReport(ctx context.Context, description string, percentage float64, photos []PhotoUpload) (ReportResult, error) {
	const op = "submit progress report"
	uid, err := o.requireSession(op)
	if err != nil {
		return ReportResult{}, err
	}
	in := reportInput{Description: strings.TrimSpace(description)}
	if err := o.check(op, in); err != nil {
		return ReportResult{}, err
	}
	for _, p := range photos {
		if p.Content == nil {
			return ReportResult{}, models.NewValidationError(op, "photo "+p.Name+" has no content")
		}
	}

	var result ReportResult
	err = o.run(ctx, saga{
		command: "submit_progress_report",
		steps: []step{
			{name: "create progress report", run: func(ctx context.Context) error {
				var err error
				result.Report, err = o.client.ProgressReports.Create(ctx, models.ProgressReport{
					Date:               models.NewDate(o.timestamp()),
					Description:        in.Description,
					PercentageComplete: models.ClampPercentage(percentage),
					SubmittedBy:        uid,
				})
				return err
			}},
			{name: "attach photos", run: func(ctx context.Context) error {
				for i, p := range photos {
					photo, err := o.attachPhoto(ctx, uid, result.Report.ID, i, p)
					if err != nil {
						if ctx.Err() != nil {
							return ctx.Err()
						}
						o.logger.Warn("Photo not attached", map[string]interface{}{
							"report": result.Report.ID,
							"photo":  p.Name,
							"error":  err.Error(),
						})
						result.Failures = append(result.Failures, PhotoFailure{Name: p.Name, Err: err})
						continue
					}
					result.Photos = append(result.Photos, photo)
				}
				return nil
			}},
		},
		refresh: o.refreshReports,
	})
	return result, err
}

// attachPhoto uploads one photo and links it to the report. An upload that
// succeeds but fails to link leaves an unreferenced file behind.
func (o *Orchestrator) attachPhoto(ctx context.Context, uid, reportID string, index int, p PhotoUpload) (models.ReportPhoto, error) {
	name := filepath.Base(p.Name)
	if name == "." || name == string(filepath.Separator) {
		name = "photo"
	}
	url, err := o.client.Upload(ctx, uid, name, p.Content)
	if err != nil {
		return models.ReportPhoto{}, err
	}
	o.logger.Debug("Photo uploaded", map[string]interface{}{"report": reportID, "index": index, "url": url})
	return o.client.ReportPhotos.Create(ctx, models.ReportPhoto{
		ReportID: reportID,
		PhotoURL: url,
		Caption:  strings.TrimSpace(p.Caption),
	})
}
