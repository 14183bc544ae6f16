package main

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sleroy/komea-salesforce-connector/config"
	"github.com/sleroy/komea-salesforce-connector/internal/connerr"
)

func parse(t *testing.T, args ...string) *options {
	t.Helper()
	o := &options{}
	fs := pflag.NewFlagSet("salesforce-connector", pflag.ContinueOnError)
	o.AddFlags(fs)
	require.NoError(t, fs.Parse(args))
	return o
}

func TestComplete(t *testing.T) {
	assert.NoError(t, parse(t, "-t").Complete())
	assert.NoError(t, parse(t, "-r", "00O1").Complete())
	assert.Error(t, parse(t, "-u", "me").Complete())
	assert.Error(t, parse(t, "-t", "-l").Complete())
}

func TestApply_CredentialsRequired(t *testing.T) {
	cfg := &config.Config{}
	err := parse(t, "-t", "-u", "me@corp").apply(cfg)
	require.Error(t, err)
	assert.True(t, connerr.IsKind(err, connerr.KindConfiguration))

	cfg = &config.Config{}
	require.NoError(t, parse(t, "-t", "-u", "me@corp", "-p", "pwd", "-k", "TOK").apply(cfg))
	assert.Equal(t, "me@corp", cfg.Salesforce.Username)
	assert.Equal(t, "TOK", cfg.Salesforce.Token)
	assert.Equal(t, "https://login.salesforce.com", cfg.Salesforce.LoginURL)
}

func TestApply_FlagsOverrideConfig(t *testing.T) {
	cfg := &config.Config{Salesforce: &config.SalesforceConfig{
		LoginURL: "https://test.salesforce.com", APIVersion: "58.0",
		Username: "cfg@corp", Password: "cfgpwd", Token: "CFG",
	}}
	require.NoError(t, parse(t, "-l", "-k", "NEW").apply(cfg))
	assert.Equal(t, "cfg@corp", cfg.Salesforce.Username)
	assert.Equal(t, "NEW", cfg.Salesforce.Token)
}
