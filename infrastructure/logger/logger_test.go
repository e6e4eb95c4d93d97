package logger

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type bufferCloser struct {
	mtx    sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func (b *bufferCloser) Write(p []byte) (int, error) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	return b.buf.Write(p)
}

func (b *bufferCloser) Close() error {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.closed = true
	return nil
}

func (b *bufferCloser) String() string {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	return b.buf.String()
}

func TestBackendFiltersByLevel(t *testing.T) {
	backend := NewBackendWithFlags(0)
	all := &bufferCloser{}
	warnings := &bufferCloser{}
	require.NoError(t, backend.AddLogWriter(all, LevelTrace))
	require.NoError(t, backend.AddLogWriter(warnings, LevelWarn))
	require.NoError(t, backend.Run())
	require.Error(t, backend.Run())
	require.Error(t, backend.AddLogWriter(&bufferCloser{}, LevelInfo))

	log := backend.Logger("TEST")
	log.SetLevel(LevelDebug)
	log.Tracef("hidden %d", 1)
	log.Debugf("shown %d", 2)
	log.Warnf("warning %d", 3)

	backend.Close()
	backend.Close()

	require.NotContains(t, all.String(), "hidden")
	require.Contains(t, all.String(), "[DBG] TEST: shown 2")
	require.Contains(t, all.String(), "[WRN] TEST: warning 3")
	require.NotContains(t, warnings.String(), "shown")
	require.Contains(t, warnings.String(), "warning 3")
	require.True(t, all.closed)
	require.True(t, warnings.closed)

	// Writes after Close are dropped.
	log.Errorf("late")
	require.NotContains(t, all.String(), "late")
}

func TestLoggerWithoutRunningBackend(t *testing.T) {
	backend := NewBackend()
	log := backend.Logger("IDLE")
	log.SetLevel(LevelTrace)
	for i := 0; i < 2*logsBuffer; i++ {
		log.Infof("never delivered")
	}
}

func TestLogClosureIsLazy(t *testing.T) {
	backend := NewBackendWithFlags(0)
	out := &bufferCloser{}
	require.NoError(t, backend.AddLogWriter(out, LevelTrace))
	require.NoError(t, backend.Run())

	log := backend.Logger("LAZY")
	called := false
	closure := NewLogClosure(func() string {
		called = true
		return "expensive"
	})
	log.Tracef("%s", closure)
	require.False(t, called)

	log.SetLevel(LevelTrace)
	log.Tracef("%s", closure)
	backend.Close()
	require.True(t, called)
	require.Contains(t, out.String(), "expensive")
}

func TestParseAndSetDebugLevels(t *testing.T) {
	defer SetLogLevels("info")

	tests := []struct {
		name    string
		input   string
		wantErr bool
		check   map[string]Level
	}{
		{
			name:  "single level",
			input: "debug",
			check: map[string]Level{SubsystemTags.PEER: LevelDebug, SubsystemTags.WIRE: LevelDebug},
		},
		{
			name:  "pairs",
			input: "PEER=trace,WIRE=warn",
			check: map[string]Level{SubsystemTags.PEER: LevelTrace, SubsystemTags.WIRE: LevelWarn},
		},
		{name: "bad level", input: "loud", wantErr: true},
		{name: "bad subsystem", input: "NOPE=debug", wantErr: true},
		{name: "missing equals", input: "PEER=debug,WIRE", wantErr: true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := ParseAndSetDebugLevels(test.input)
			if test.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			for tag, want := range test.check {
				log, ok := Get(tag)
				require.True(t, ok)
				require.Equal(t, want, log.Level())
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  Level
	}{
		{"trace", LevelTrace},
		{"DBG", LevelDebug},
		{" Info ", LevelInfo},
		{"wrn", LevelWarn},
		{"error", LevelError},
		{"CRITICAL", LevelCritical},
		{"off", LevelOff},
	}
	for _, test := range tests {
		level, err := ParseLevel(test.input)
		require.NoError(t, err, test.input)
		require.Equal(t, test.want, level, test.input)
	}

	level, err := ParseLevel("loud")
	require.Error(t, err)
	require.Equal(t, LevelInfo, level)
	require.Contains(t, err.Error(), "trace, debug, info, warn, error, critical, off")

	require.Equal(t, "WRN", LevelWarn.String())
	require.Equal(t, "OFF", Level(42).String())
}

func TestParseAndSetDebugLevelsNamesSubsystem(t *testing.T) {
	SetLogLevels("info")
	defer SetLogLevels("info")

	err := ParseAndSetDebugLevels("PEER=loud")
	require.Error(t, err)
	require.Contains(t, err.Error(), "subsystem PEER")
	require.Contains(t, err.Error(), "invalid log level [loud]")

	// An invalid level leaves the subsystem untouched.
	SetLogLevel(SubsystemTags.PEER, "nonsense")
	log, ok := Get(SubsystemTags.PEER)
	require.True(t, ok)
	require.Equal(t, LevelInfo, log.Level())
}

func TestSupportedSubsystemsSorted(t *testing.T) {
	subsystems := SupportedSubsystems()
	require.Len(t, subsystems, 5)
	require.True(t, strings.Compare(subsystems[0], subsystems[len(subsystems)-1]) < 0)
}
