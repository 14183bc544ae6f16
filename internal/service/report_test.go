package service_test

import (
	"errors"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"

	"github.com/sleroy/komea-salesforce-connector/internal/service"
)

func TestBatchReport_Merge(t *testing.T) {
	r := &service.BatchReport{Operation: "push-measurements"}
	assert.NoError(t, r.Err())
	assert.False(t, r.HasFailures())

	other := &service.BatchReport{
		Total: 3, Succeeded: 1, Rejected: 1, Failed: 1,
		Errors: multierror.Append(nil, errors.New("rejected"), errors.New("failed")),
	}
	r.Merge(other)
	r.Merge(nil)

	assert.Equal(t, 3, r.Total)
	assert.Equal(t, 1, r.Succeeded)
	assert.Equal(t, 1, r.Rejected)
	assert.True(t, r.HasFailures())
	assert.Len(t, r.Errors.Errors, 2)
	assert.ErrorContains(t, r.Err(), "failed")
}
