package storehours

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSettings struct {
	values map[string]string
	err    error
}

func (f fakeSettings) FindAllByContext(ctx context.Context, settingContext string) (map[string]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.values, nil
}

func newProviderAt(t *testing.T, settings SettingsSource, at time.Time) *Provider {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	return NewProvider(settings, clockwork.NewFakeClockAt(at), loc)
}

func TestProviderIsOpenWithOverride(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	fridayNight := time.Date(2024, 6, 7, 19, 0, 0, 0, loc)
	mondayNight := time.Date(2024, 6, 3, 19, 0, 0, 0, loc)
	ctx := context.Background()

	tests := []struct {
		name     string
		at       time.Time
		override string
		want     bool
	}{
		{"auto open", fridayNight, "", true},
		{"auto closed", mondayNight, "auto", false},
		{"forced open", mondayNight, "open", true},
		{"forced closed", fridayNight, "CLOSED", false},
		{"unknown override is auto", fridayNight, "maybe", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProviderAt(t, fakeSettings{values: map[string]string{"override": tt.override}}, tt.at)
			open, err := p.IsOpen(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, open)
		})
	}
}

func TestProviderIsOpenError(t *testing.T) {
	p := newProviderAt(t, fakeSettings{err: errors.New("db down")}, time.Now())
	_, err := p.IsOpen(context.Background())
	assert.Error(t, err)
}

func TestOffHoursConfigDefaults(t *testing.T) {
	p := newProviderAt(t, fakeSettings{values: map[string]string{}}, time.Now())

	cfg, err := p.OffHoursConfig(context.Background())
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, OFF_HOURS_MESSAGE_DEFAULT, cfg.Message)
	assert.Equal(t, RESPONSE_TYPE_TEXT, cfg.ResponseType)
	assert.Equal(t, 15*time.Minute, cfg.Cooldown())
	assert.Equal(t, 20*time.Second, cfg.Aggregation())
}

func TestOffHoursConfigFromSettings(t *testing.T) {
	p := newProviderAt(t, fakeSettings{values: map[string]string{
		"off-hours-enabled":             "false",
		"off-hours-message":             "Fechado",
		"off-hours-response-type":       "VIDEO",
		"off-hours-video":               "https://cdn/v.mp4",
		"off-hours-video-caption":       "Até amanhã",
		"off-hours-cooldown-minutes":    "0",
		"off-hours-aggregation-seconds": "0",
	}}, time.Now())

	cfg, err := p.OffHoursConfig(context.Background())
	require.NoError(t, err)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "Fechado", cfg.Message)
	assert.Equal(t, RESPONSE_TYPE_VIDEO, cfg.ResponseType)
	assert.Equal(t, "https://cdn/v.mp4", cfg.Video)
	assert.Equal(t, "Até amanhã", cfg.Caption)
	assert.Equal(t, OFF_HOURS_COOLDOWN_MINUTES_DEFAULT, cfg.CooldownMinutes, "cooldown must be positive")
	assert.Equal(t, 0, cfg.AggregationSeconds, "zero aggregation means send now")
}
