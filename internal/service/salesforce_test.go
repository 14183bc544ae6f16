package service_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sleroy/komea-salesforce-connector/internal/connerr"
	"github.com/sleroy/komea-salesforce-connector/internal/model"
	"github.com/sleroy/komea-salesforce-connector/internal/rest"
	"github.com/sleroy/komea-salesforce-connector/internal/service"
)

type fakeSalesforce struct {
	authErr error
	batches map[string]model.QueryResult[model.ReportRef]
}

func (f *fakeSalesforce) FastAuthenticate(context.Context) (model.SessionProof, error) {
	if f.authErr != nil {
		return model.SessionProof{}, f.authErr
	}
	return model.SessionProof{Token: "tok"}, nil
}

func (f *fakeSalesforce) ListReports(_ context.Context, _ model.SessionProof) rest.Result[model.QueryResult[model.ReportRef]] {
	return rest.Ok(f.batches[""])
}

func (f *fakeSalesforce) MoreReports(_ context.Context, _ model.SessionProof, next string) rest.Result[model.QueryResult[model.ReportRef]] {
	batch, ok := f.batches[next]
	if !ok {
		return rest.Fail[model.QueryResult[model.ReportRef]](connerr.Status("salesforce.queryMore", http.StatusNotFound, ""))
	}
	return rest.Ok(batch)
}

func (f *fakeSalesforce) ExecuteReport(_ context.Context, _ model.SessionProof, id string) rest.Result[model.ReportResult] {
	if id != "00O1" {
		return rest.Fail[model.ReportResult](connerr.Status("salesforce.executeReport", http.StatusNotFound, ""))
	}
	return rest.Ok(model.ReportResult{
		ReportMetadata: json.RawMessage(`{"name":"Pipeline"}`),
		FactMap:        json.RawMessage(`{"T!T":{}}`),
	})
}

func TestSalesforceListReports_FollowsBatches(t *testing.T) {
	api := &fakeSalesforce{batches: map[string]model.QueryResult[model.ReportRef]{
		"":      {Done: false, NextRecordsURL: "/next", Records: []model.ReportRef{{ID: "00O1", Name: "Pipeline"}}},
		"/next": {Done: true, Records: []model.ReportRef{{ID: "00O2", Name: "Wins"}}},
	}}
	var out bytes.Buffer

	count, err := service.NewSalesforceService(api).ListReports(context.Background(), &out)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, "00O1 : Pipeline\n00O2 : Wins\n", out.String())
}

func TestSalesforcePrintReport(t *testing.T) {
	svc := service.NewSalesforceService(&fakeSalesforce{})
	var out bytes.Buffer

	require.NoError(t, svc.PrintReport(context.Background(), &out, "00O1"))
	assert.Equal(t, "{\"name\":\"Pipeline\"}\n{\"T!T\":{}}\n", out.String())

	err := svc.PrintReport(context.Background(), &out, "missing")
	assert.True(t, connerr.IsKind(err, connerr.KindHTTPStatus))
}

func TestSalesforceAuthenticationFailureStops(t *testing.T) {
	authErr := connerr.New(connerr.KindAuthentication, "salesforce.fastAuthenticate", errors.New("invalid_grant"))
	svc := service.NewSalesforceService(&fakeSalesforce{authErr: authErr})

	assert.ErrorIs(t, svc.TestConnection(context.Background()), authErr)
	_, err := svc.ListReports(context.Background(), &bytes.Buffer{})
	assert.ErrorIs(t, err, authErr)
}
