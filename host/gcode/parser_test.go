package gcode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParser_SimpleMove(t *testing.T) {
	p := NewParser()
	cmd, err := p.ParseLine("G1 X10 Y20.5 F3000")
	require.NoError(t, err)
	require.Equal(t, byte('G'), cmd.Type)
	require.Equal(t, 1, cmd.Number)
	require.InDelta(t, 10.0, cmd.GetParameter('X', 0), 1e-9)
	require.InDelta(t, 20.5, cmd.GetParameter('Y', 0), 1e-9)
	require.InDelta(t, 3000.0, cmd.GetParameter('F', 0), 1e-9)
	require.False(t, cmd.HasParameter('Z'))
}

func TestParser_NegativeAndDefault(t *testing.T) {
	p := NewParser()
	cmd, err := p.ParseLine("G1 X-5.25")
	require.NoError(t, err)
	require.InDelta(t, -5.25, cmd.GetParameter('X', 0), 1e-9)
	require.InDelta(t, 99, cmd.GetParameter('Y', 99), 1e-9)
}

func TestParser_CommentOnly(t *testing.T) {
	p := NewParser()
	cmd, err := p.ParseLine("; a comment")
	require.NoError(t, err)
	require.Equal(t, byte(0), cmd.Type)
	require.NotEmpty(t, cmd.Comment)
}

func TestParser_BlankLine(t *testing.T) {
	p := NewParser()
	cmd, err := p.ParseLine("")
	require.NoError(t, err)
	require.Nil(t, cmd)
}

func TestParser_TrailingComment(t *testing.T) {
	p := NewParser()
	cmd, err := p.ParseLine("G28 X ; home X only")
	require.NoError(t, err)
	require.Equal(t, 28, cmd.Number)
	require.True(t, cmd.HasParameter('X'))
	require.NotEmpty(t, cmd.Comment)
}
