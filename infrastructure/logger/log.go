package logger

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// BackendLog is the logging backend used to create all subsystem loggers.
var BackendLog = NewBackend()

// SubsystemTags is an enum of all sub system tags
var SubsystemTags = struct {
	SPVD,
	PEER,
	WIRE,
	NTAR,
	CNFG string
}{
	SPVD: "SPVD",
	PEER: "PEER",
	WIRE: "WIRE",
	NTAR: "NTAR",
	CNFG: "CNFG",
}

var subsystemLoggers = map[string]*Logger{
	SubsystemTags.SPVD: BackendLog.Logger(SubsystemTags.SPVD),
	SubsystemTags.PEER: BackendLog.Logger(SubsystemTags.PEER),
	SubsystemTags.WIRE: BackendLog.Logger(SubsystemTags.WIRE),
	SubsystemTags.NTAR: BackendLog.Logger(SubsystemTags.NTAR),
	SubsystemTags.CNFG: BackendLog.Logger(SubsystemTags.CNFG),
}

// InitLog attaches log file and error log file to the backend log and
// starts it. stdout, when set, also receives every line at the info level
// and above.
func InitLog(logFile, errLogFile string, stdout bool) {
	err := BackendLog.AddLogFile(logFile, LevelTrace)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error adding log file %s as log rotator for level %s: %s", logFile, LevelTrace, err)
		os.Exit(1)
	}
	err = BackendLog.AddLogFile(errLogFile, LevelWarn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error adding log file %s as log rotator for level %s: %s", errLogFile, LevelWarn, err)
		os.Exit(1)
	}
	if stdout {
		err = BackendLog.AddLogWriter(os.Stdout, LevelInfo)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error adding stdout to the logger for level %s: %s", LevelInfo, err)
			os.Exit(1)
		}
	}
	err = BackendLog.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting the logger: %s ", err)
		os.Exit(1)
	}
}

// Get returns the logger of a specific subsystem
func Get(tag string) (logger *Logger, ok bool) {
	logger, ok = subsystemLoggers[tag]
	return
}

// SupportedSubsystems returns a sorted slice of the supported subsystems for
// logging purposes.
func SupportedSubsystems() []string {
	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsysID := range subsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}
	sort.Strings(subsystems)
	return subsystems
}

// SetLogLevel sets the logging level for provided subsystem. Invalid
// subsystems and levels are ignored.
func SetLogLevel(subsystemID string, logLevel string) {
	logger, ok := subsystemLoggers[subsystemID]
	if !ok {
		return
	}
	level, err := ParseLevel(logLevel)
	if err != nil {
		return
	}
	logger.SetLevel(level)
}

// SetLogLevels sets the log level for all subsystem loggers to the passed
// level.
func SetLogLevels(logLevel string) {
	for subsystemID := range subsystemLoggers {
		SetLogLevel(subsystemID, logLevel)
	}
}

// ParseAndSetDebugLevels attempts to parse the specified debug level and set
// the levels accordingly. It accepts either a single level that applies to
// every subsystem or a comma separated list of subsystem=level pairs.
func ParseAndSetDebugLevels(debugLevel string) error {
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		if _, err := ParseLevel(debugLevel); err != nil {
			return err
		}
		SetLogLevels(debugLevel)
		return nil
	}

	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			return errors.Errorf("the specified debug level contains an invalid "+
				"subsystem/level pair [%s]", logLevelPair)
		}

		fields := strings.Split(logLevelPair, "=")
		subsysID, logLevel := fields[0], fields[1]

		if _, exists := Get(subsysID); !exists {
			return errors.Errorf("the specified subsystem [%s] is invalid -- "+
				"supported subsystems %s", subsysID, strings.Join(SupportedSubsystems(), ", "))
		}
		if _, err := ParseLevel(logLevel); err != nil {
			return errors.Wrapf(err, "subsystem %s", subsysID)
		}

		SetLogLevel(subsysID, logLevel)
	}
	return nil
}
