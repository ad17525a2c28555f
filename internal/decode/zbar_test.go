package decode

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseZBarOutput(t *testing.T) {
	out := []byte("EAN-13:5901234123457\n\nCODE-128:LOT:42\ngarbage\nI2/5:12345670\n")
	got := parseZBarOutput(out)
	require.Len(t, got, 3)
	assert.Equal(t, Candidate{Value: "5901234123457", Format: FormatEAN13}, got[0])
	assert.Equal(t, Candidate{Value: "LOT:42", Format: FormatCode128}, got[1])
	assert.Equal(t, Candidate{Value: "12345670", Format: FormatITF}, got[2])
}

func TestZBarDetector_InitMissingBinary(t *testing.T) {
	z := NewZBarDetector("/nonexistent/zbarimg")
	assert.Error(t, z.Init(DefaultFormats))

	_, err := z.Detect(context.Background(), blankFrame())
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestFormatFromZBar(t *testing.T) {
	assert.Equal(t, FormatUPCE, formatFromZBar("UPC-E"))
	assert.Equal(t, FormatCode39, formatFromZBar("CODE-39"))
	assert.Equal(t, Format("databar"), formatFromZBar("DataBar"))
}

func TestZBarArgs_DefaultAllowlist(t *testing.T) {
	assert.Equal(t, []string{
		"--quiet", "-Sdisable",
		"-Supca.enable", "-Sean13.enable", "-Sean8.enable", "-Supce.enable", "-Scode128.enable",
		"png:-",
	}, zbarArgs(DefaultFormats))

	assert.Equal(t, []string{"--quiet", "-Sdisable", "-Si25.enable", "png:-"}, zbarArgs([]Format{FormatITF}))
}

func TestZBarDetector_InitBuildsArgs(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a shell script standing in for zbarimg")
	}
	bin := filepath.Join(t.TempDir(), "zbarimg")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\necho 0.23\n"), 0o755))

	z := NewZBarDetector(bin)
	require.NoError(t, z.Init(DefaultFormats))
	assert.Equal(t, zbarArgs(DefaultFormats), z.Args())

	args := z.Args()
	args[0] = "changed"
	assert.Equal(t, "--quiet", z.Args()[0])
}
