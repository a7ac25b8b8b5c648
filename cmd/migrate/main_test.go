package main

import (
	"database/sql"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate(t *testing.T) {
	var gotCommand string
	var gotArgs []string
	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		gotCommand, gotArgs = command, args
		switch command {
		case "up", "up-by-one", "down", "redo", "reset", "status", "version":
			return nil
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s requires VERSION", command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
			return nil
		}
		return fmt.Errorf("%q: no such command", command)
	}

	tests := []struct {
		name       string
		args       []string
		wantErr    error
		wantErrStr string
	}{
		{name: "no subcommand", args: nil, wantErr: errUsage},
		{name: "unknown", args: []string{"lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up", args: []string{"up"}},
		{name: "up-to", args: []string{"up-to", "1"}},
		{name: "up-to non-int", args: []string{"up-to", "x"}, wantErrStr: "version must be a number (got 'x')"},
		{name: "status", args: []string{"status"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := migrate(nil, tt.args)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantErrStr != "":
				assert.EqualError(t, err, tt.wantErrStr)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.args[0], gotCommand)
				assert.Equal(t, tt.args[1:], gotArgs)
			}
		})
	}
}
