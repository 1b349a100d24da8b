package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateReportsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Master.Address = "nonsense"
	cfg.Worker.Port = 0
	cfg.Worker.WorkStep = 0
	cfg.Scheduler.TickInterval = 0
	cfg.Logging.Level = "loud"

	err := cfg.Validate()
	require.Error(t, err)

	var errs ValidationErrors
	require.ErrorAs(t, err, &errs)

	fields := make([]string, 0, len(errs))
	for _, e := range errs {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{
		"master.address",
		"worker.port",
		"worker.work_step",
		"scheduler.tick_interval",
		"logging.level",
	}, fields)
}

func TestValidateSweepRequiresInterval(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Master.HeartbeatTTL = 10
	cfg.Master.SweepInterval = 0
	assert.ErrorContains(t, cfg.Validate(), "master.sweep_interval")
}

func TestValidateMasterURLOnlyWhenRegistering(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Worker.MasterURL = "not a url"
	assert.ErrorContains(t, cfg.Validate(), "worker.master_url")

	cfg.Worker.Register = false
	assert.NoError(t, cfg.Validate())
}

func TestValidateFileOutputNeedsPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Output = "file"
	assert.ErrorContains(t, cfg.Validate(), "logging.file_path")

	cfg.Logging.FilePath = "/tmp/dispatch.log"
	assert.NoError(t, cfg.Validate())
}

func TestValidateSchedulerDisabledSkipsChecks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scheduler.Enabled = false
	cfg.Scheduler.TickInterval = 0
	assert.NoError(t, cfg.Validate())
}
