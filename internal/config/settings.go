package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type RemoteConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	Token       string `mapstructure:"token"`
	TimeoutSecs int    `mapstructure:"timeout_secs" default:"10"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// CallConfig tunes microphone based call detection.
type CallConfig struct {
	PollSecs          int      `mapstructure:"poll_secs"`
	StartDelaySecs    int      `mapstructure:"start_delay_secs"`
	EndDelaySecs      int      `mapstructure:"end_delay_secs"`
	SuppressSecs      int      `mapstructure:"suppress_secs"`
	IgnoredDeviceUIDs []string `mapstructure:"ignored_device_uids"`
	Emoji             string   `mapstructure:"emoji"`
	Text              string   `mapstructure:"text"`
}

// MeetingConfig tunes calendar based meeting detection.
type MeetingConfig struct {
	CheckSecs           int      `mapstructure:"check_secs"`
	CacheTTLMins        int      `mapstructure:"cache_ttl_mins"`
	TriggerBusy         bool     `mapstructure:"trigger_busy"`
	TriggerTentative    bool     `mapstructure:"trigger_tentative"`
	TriggerFree         bool     `mapstructure:"trigger_free"`
	SelectedCalendarIDs []string `mapstructure:"selected_calendar_ids"`
	Emoji               string   `mapstructure:"emoji"`
	Text                string   `mapstructure:"text"`
}

type OOOConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	PauseNotifications bool   `mapstructure:"pause_notifications"`
	Emoji              string `mapstructure:"emoji"`
	Text               string `mapstructure:"text"`
}

type EngineConfig struct {
	TickSecs             int    `mapstructure:"tick_secs"`
	ConnectivitySecs     int    `mapstructure:"connectivity_secs"`
	PauseOnScheduledAway bool   `mapstructure:"pause_on_scheduled_away"`
	DeviceFactsPath      string `mapstructure:"device_facts_path"`
	CalendarFactsPath    string `mapstructure:"calendar_facts_path"`
}

type Settings struct {
	Remote  RemoteConfig  `mapstructure:"remote"`
	DB      DBConfig      `mapstructure:"database"`
	Server  ServerConfig  `mapstructure:"server"`
	Call    CallConfig    `mapstructure:"call"`
	Meeting MeetingConfig `mapstructure:"meeting"`
	OOO     OOOConfig     `mapstructure:"ooo"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Env     string        `mapstructure:"env"`
	Debug   bool          `mapstructure:"debug" default:"false"`
}

func Load() (*Settings, error) {
	// Load settings from a configuration file or environment variables
	viper.SetConfigName("config_" + genEnv())
	viper.AddConfigPath(".")
	viper.SetConfigType("yaml")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var settings Settings
	if err := viper.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	settings.clamp()

	return &settings, nil
}

// Reload re-reads the file viper already resolved. Used by the change watcher.
func Reload() (*Settings, error) {
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to re-read config: %w", err)
	}

	var settings Settings
	if err := viper.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	settings.clamp()

	return &settings, nil
}

// ConfigFilePath reports the file viper resolved, for the change watcher.
func ConfigFilePath() string {
	return viper.ConfigFileUsed()
}

func setDefaults() {
	viper.SetDefault("server.addr", ":8687")
	viper.SetDefault("database.path", "presenced.db")
	viper.SetDefault("remote.timeout_secs", 10)
	viper.SetDefault("call.poll_secs", 5)
	viper.SetDefault("call.start_delay_secs", 10)
	viper.SetDefault("call.end_delay_secs", 3)
	viper.SetDefault("call.suppress_secs", 30)
	viper.SetDefault("call.emoji", ":telephone_receiver:")
	viper.SetDefault("call.text", "On a call")
	viper.SetDefault("meeting.check_secs", 60)
	viper.SetDefault("meeting.cache_ttl_mins", 15)
	viper.SetDefault("meeting.trigger_busy", true)
	viper.SetDefault("meeting.trigger_tentative", true)
	viper.SetDefault("meeting.trigger_free", false)
	viper.SetDefault("meeting.emoji", ":calendar:")
	viper.SetDefault("meeting.text", "In a meeting")
	viper.SetDefault("ooo.enabled", true)
	viper.SetDefault("ooo.pause_notifications", true)
	viper.SetDefault("ooo.emoji", ":palm_tree:")
	viper.SetDefault("ooo.text", "Out of office")
	viper.SetDefault("engine.tick_secs", 60)
	viper.SetDefault("engine.connectivity_secs", 15)
	viper.SetDefault("engine.pause_on_scheduled_away", false)
}

// clamp keeps user supplied debounce delays inside the supported 1-30s range.
func (s *Settings) clamp() {
	s.Call.StartDelaySecs = clampSecs(s.Call.StartDelaySecs, 10)
	s.Call.EndDelaySecs = clampSecs(s.Call.EndDelaySecs, 3)
	if s.Call.PollSecs <= 0 {
		s.Call.PollSecs = 5
	}
	if s.Call.SuppressSecs <= 0 {
		s.Call.SuppressSecs = 30
	}
	if s.Engine.TickSecs <= 0 {
		s.Engine.TickSecs = 60
	}
}

func clampSecs(v, def int) int {
	switch {
	case v == 0:
		return def
	case v < 1:
		return 1
	case v > 30:
		return 30
	}
	return v
}

func (c CallConfig) StartDelay() time.Duration {
	return time.Duration(c.StartDelaySecs) * time.Second
}

func (c CallConfig) EndDelay() time.Duration {
	return time.Duration(c.EndDelaySecs) * time.Second
}

func (c CallConfig) SuppressFor() time.Duration {
	return time.Duration(c.SuppressSecs) * time.Second
}

func (m MeetingConfig) CacheTTL() time.Duration {
	return time.Duration(m.CacheTTLMins) * time.Minute
}

func genEnv() string {
	env := viper.GetString("ENV")
	if env == "" {
		return "dev"
	}
	return env
}
