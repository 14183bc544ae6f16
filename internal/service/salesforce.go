package service

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
)

type SalesforceService interface {
	TestConnection(ctx context.Context) error
	ListReports(ctx context.Context, w io.Writer) (int, error)
	PrintReport(ctx context.Context, w io.Writer, reportID string) error
}

type salesforceService struct {
	api SalesforceAPI
}

func NewSalesforceService(api SalesforceAPI) SalesforceService {
	return &salesforceService{api: api}
}

func (s *salesforceService) TestConnection(ctx context.Context) error {
	if _, err := s.api.FastAuthenticate(ctx); err != nil {
		return err
	}
	log.Info().Msg("Connection to Salesforce succeed")
	return nil
}

// ListReports prints "<id> : <name>" for every report of the account,
// following the query batches to the end.
func (s *salesforceService) ListReports(ctx context.Context, w io.Writer) (int, error) {
	session, err := s.api.FastAuthenticate(ctx)
	if err != nil {
		return 0, err
	}

	batch, err := s.api.ListReports(ctx, session).Unwrap()
	if err != nil {
		return 0, fmt.Errorf("list reports: %w", err)
	}
	count := 0
	for {
		for _, r := range batch.Records {
			if _, err := fmt.Fprintf(w, "%s : %s\n", r.ID, r.Name); err != nil {
				return count, err
			}
			count++
		}
		if !batch.HasMore() {
			break
		}
		if batch, err = s.api.MoreReports(ctx, session, batch.NextRecordsURL).Unwrap(); err != nil {
			return count, fmt.Errorf("list reports: %w", err)
		}
	}
	log.Info().Int("count", count).Msg("Listed Salesforce reports")
	return count, nil
}

// PrintReport executes a report and prints its metadata and fact map.
func (s *salesforceService) PrintReport(ctx context.Context, w io.Writer, reportID string) error {
	session, err := s.api.FastAuthenticate(ctx)
	if err != nil {
		return err
	}
	result, err := s.api.ExecuteReport(ctx, session, reportID).Unwrap()
	if err != nil {
		log.Error().Err(err).Str("report", reportID).Msg("Cannot obtain the report")
		return err
	}
	if _, err := fmt.Fprintf(w, "%s\n%s\n", result.ReportMetadata, result.FactMap); err != nil {
		return err
	}
	return nil
}
