package util

import (
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

// osExit is swapped in tests.
var osExit = os.Exit

func FailOnError(err error, msg ...string) {
	if err != nil {
		ExitOnError(err, 1, msg...)
	}
}

// ExitOnError logs err and terminates with code, which must be non-zero.
func ExitOnError(err error, code int, msg ...string) {
	if err == nil {
		return
	}
	if code == 0 {
		code = 1
	}
	log.Error().Err(err).Int("code", code).Msg(strings.Join(msg, " "))
	osExit(code)
}

func WarnOnError(err error, msg ...string) {
	if err != nil {
		log.Warn().Err(err).Msg(strings.Join(msg, " "))
	}
}
