package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "openvr_adapter.cfg.json"

// AdapterConfig holds the tracking adapter settings.
type AdapterConfig struct {
	ConnectTimeout    time.Duration `json:"connectTimeout" mapstructure:"connectTimeout"`
	QuitShutdownDelay time.Duration `json:"quitShutdownDelay" mapstructure:"quitShutdownDelay"`
	HapticPulse       time.Duration `json:"hapticPulse" mapstructure:"hapticPulse"`
	SerialPrefix      string        `json:"serialPrefix" mapstructure:"serialPrefix"`
	OverlayKey        string        `json:"overlayKey" mapstructure:"overlayKey"`
	OverlayName       string        `json:"overlayName" mapstructure:"overlayName"`
	TickInterval      time.Duration `json:"tickInterval" mapstructure:"tickInterval"`
	ServerProcess     string        `json:"serverProcess" mapstructure:"serverProcess"`
	DocsBaseURL       string        `json:"docsBaseUrl" mapstructure:"docsBaseUrl"`
	DocsLanguage      string        `json:"docsLanguage" mapstructure:"docsLanguage"`
}

// JournalConfig selects where status and enumeration history is kept.
type JournalConfig struct {
	Type       string `json:"type" mapstructure:"type"`
	SQLitePath string `json:"sqlitePath" mapstructure:"sqlitePath"`
}

// InfluxConfig holds InfluxDB telemetry settings.
type InfluxConfig struct {
	Enabled    bool   `json:"enabled" mapstructure:"enabled"`
	URL        string `json:"url" mapstructure:"url"`
	Token      string `json:"token" mapstructure:"token"`
	Org        string `json:"org" mapstructure:"org"`
	Bucket     string `json:"bucket" mapstructure:"bucket"`
	BackupPath string `json:"backupPath" mapstructure:"backupPath"`
}

// MQTTConfig holds the joint feed broker settings.
type MQTTConfig struct {
	Enabled      bool   `json:"enabled" mapstructure:"enabled"`
	Broker       string `json:"broker" mapstructure:"broker"`
	ClientID     string `json:"clientId" mapstructure:"clientId"`
	JointsTopic  string `json:"jointsTopic" mapstructure:"jointsTopic"`
	StatusTopic  string `json:"statusTopic" mapstructure:"statusTopic"`
	CommandTopic string `json:"commandTopic" mapstructure:"commandTopic"`
}

// SetDefaults registers every default value.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("adapter.connectTimeout", "7s")
	viper.SetDefault("adapter.quitShutdownDelay", "500ms")
	viper.SetDefault("adapter.hapticPulse", "3999us")
	viper.SetDefault("adapter.serialPrefix", "AME-")
	viper.SetDefault("adapter.overlayKey", "jointfeed.openvr.adapter")
	viper.SetDefault("adapter.overlayName", "JointFeed OpenVR")
	viper.SetDefault("adapter.tickInterval", "16ms")
	viper.SetDefault("adapter.serverProcess", "vrserver")
	viper.SetDefault("adapter.docsBaseUrl", "https://docs.jointfeed.dev")
	viper.SetDefault("adapter.docsLanguage", "en")

	viper.SetDefault("journal.type", "none")
	viper.SetDefault("journal.sqlitePath", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "jointfeed")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.url", "http://localhost:8086")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "jointfeed")
	viper.SetDefault("influx.bucket", "joints")
	viper.SetDefault("influx.backupPath", "./logs/influx_backup.lp.gz")

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.clientId", "jointfeed-openvr")
	viper.SetDefault("mqtt.jointsTopic", "jointfeed/openvr/joints")
	viper.SetDefault("mqtt.statusTopic", "jointfeed/openvr/status")
	viper.SetDefault("mqtt.commandTopic", "jointfeed/openvr/command")
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetAdapterConfig returns the adapter section.
func GetAdapterConfig() AdapterConfig {
	return AdapterConfig{
		ConnectTimeout:    viper.GetDuration("adapter.connectTimeout"),
		QuitShutdownDelay: viper.GetDuration("adapter.quitShutdownDelay"),
		HapticPulse:       viper.GetDuration("adapter.hapticPulse"),
		SerialPrefix:      viper.GetString("adapter.serialPrefix"),
		OverlayKey:        viper.GetString("adapter.overlayKey"),
		OverlayName:       viper.GetString("adapter.overlayName"),
		TickInterval:      viper.GetDuration("adapter.tickInterval"),
		ServerProcess:     viper.GetString("adapter.serverProcess"),
		DocsBaseURL:       viper.GetString("adapter.docsBaseUrl"),
		DocsLanguage:      viper.GetString("adapter.docsLanguage"),
	}
}

// GetJournalConfig returns the journal section.
func GetJournalConfig() JournalConfig {
	return JournalConfig{
		Type:       viper.GetString("journal.type"),
		SQLitePath: viper.GetString("journal.sqlitePath"),
	}
}

// GetInfluxConfig returns the influx section.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:    viper.GetBool("influx.enabled"),
		URL:        viper.GetString("influx.url"),
		Token:      viper.GetString("influx.token"),
		Org:        viper.GetString("influx.org"),
		Bucket:     viper.GetString("influx.bucket"),
		BackupPath: viper.GetString("influx.backupPath"),
	}
}

// GetMQTTConfig returns the mqtt section.
func GetMQTTConfig() MQTTConfig {
	return MQTTConfig{
		Enabled:      viper.GetBool("mqtt.enabled"),
		Broker:       viper.GetString("mqtt.broker"),
		ClientID:     viper.GetString("mqtt.clientId"),
		JointsTopic:  viper.GetString("mqtt.jointsTopic"),
		StatusTopic:  viper.GetString("mqtt.statusTopic"),
		CommandTopic: viper.GetString("mqtt.commandTopic"),
	}
}
