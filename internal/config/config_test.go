package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleXML = `<?xml version="1.0" encoding="UTF-8"?>
<API REQUEST_DUMP="true">
  <CONTEXT>
    <PORT>9090</PORT>
    <HOST>127.0.0.1</HOST>
  </CONTEXT>
  <AUTHENTICATION>
    <ENABLE_TOKEN_AUTH>true</ENABLE_TOKEN_AUTH>
    <ACCESS_SECRET>file-secret</ACCESS_SECRET>
  </AUTHENTICATION>
  <DB>
    <DRIVER>postgres</DRIVER>
    <HOST>db.internal</HOST>
    <PORT>5433</PORT>
    <NAMES QUIZ="quiz"/>
    <USERNAME>quiz</USERNAME>
    <PASSWORD TYPE="plain">pw</PASSWORD>
  </DB>
  <LEARNING>
    <ASSESSMENT_LENGTH>7</ASSESSMENT_LENGTH>
    <PROMOTION_MODE>streak</PROMOTION_MODE>
  </LEARNING>
</API>`

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte(sampleXML))
	require.NoError(t, err)

	assert.True(t, c.RequestDump)
	assert.Equal(t, 9090, c.Context.Port)
	assert.Equal(t, "postgres", c.DB.Driver)
	assert.Equal(t, 7, c.Learning.AssessmentLength)
	assert.Equal(t, "streak", c.Learning.PromotionMode)

	assert.Equal(t, 3, c.Learning.DefaultLevel)
	assert.Equal(t, 10, c.Learning.MaxLevel)
	assert.Equal(t, "db", c.Session.Store)
	assert.Equal(t, 20, c.Pagination.PageSize)
	assert.Equal(t, "host=db.internal port=5433 user=quiz password=pw dbname=quiz sslmode=disable", c.PostgresDSN())
	assert.NoError(t, c.Validate())
}

func TestParseRejectsBrokenXML(t *testing.T) {
	_, err := Parse([]byte("<API><CONTEXT>"))
	assert.Error(t, err)
}

func TestEnvOverridesWin(t *testing.T) {
	t.Setenv("QUIZ_PORT", "7000")
	t.Setenv("QUIZ_ACCESS_SECRET", "env-secret")
	t.Setenv("QUIZ_ASSESSMENT_LENGTH", "3")
	t.Setenv("QUIZ_REQUEST_DUMP", "false")
	t.Setenv("QUIZ_DB_DSN", "postgres://u:p@h/db")

	c, err := Parse([]byte(sampleXML))
	require.NoError(t, err)

	assert.Equal(t, 7000, c.Context.Port)
	assert.Equal(t, "env-secret", c.Authentication.AccessSecret)
	assert.Equal(t, 3, c.Learning.AssessmentLength)
	assert.False(t, c.RequestDump)
	assert.Equal(t, "postgres://u:p@h/db", c.PostgresDSN())
}

func TestEnvOverrideIgnoresGarbage(t *testing.T) {
	t.Setenv("QUIZ_PORT", "not-a-port")
	c, err := Parse([]byte(sampleXML))
	require.NoError(t, err)
	assert.Equal(t, 9090, c.Context.Port)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.xml")
	require.NoError(t, os.WriteFile(path, []byte(sampleXML), 0o600))

	c, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Same(t, c, GetConfig())

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.xml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	c.Session.Store = "redis"
	assert.Error(t, c.Validate())
	c.Redis.Addr = "localhost:6379"
	assert.NoError(t, c.Validate())

	c.DB.Driver = "mysql"
	assert.Error(t, c.Validate())

	c = Default()
	c.Authentication.EnableTokenAuth = true
	assert.Error(t, c.Validate())

	c = Default()
	c.Learning.MaxLevel = 0
	c.Learning.MinLevel = 2
	assert.Error(t, c.Validate())
}
