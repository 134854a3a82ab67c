package config

import (
    "log"
    "strings"

    "github.com/spf13/viper"
)

type Config struct {
    Server struct {
        Port     string
        LogLevel string
    }
    Intent struct {
        Endpoint      string
        APIKey        string
        MinConfidence float64
        TimeoutMs     int
    }
    Scheduler struct {
        Endpoint  string
        APIKey    string
        TimeoutMs int
    }
    Booking struct {
        ConfirmThreshold int
        RetryCeiling     int
        DigressionCap    int
        TurnTimeoutMs    int
    }
    Gateway struct {
        TokenSecret   string
        TokenSkewSecs int
        TokenTTLMin   int
    }
    Org struct {
        Name         string
        Services     string // comma-separated catalog
        Hours        string
        Location     string
        LocationMode string
        Greeting     string
    }
}

func Load() Config {
    v := viper.New()
    v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
    v.AutomaticEnv()

    // Defaults
    v.SetDefault("server.port", 8080)
    v.SetDefault("server.log_level", "info")

    v.SetDefault("intent.min_confidence", 0.5)
    v.SetDefault("intent.timeout_ms", 800)

    v.SetDefault("scheduler.timeout_ms", 1500)

    v.SetDefault("booking.confirm_threshold", 3)
    v.SetDefault("booking.retry_ceiling", 5)
    v.SetDefault("booking.digression_cap", 5)
    v.SetDefault("booking.turn_timeout_ms", 1500)

    v.SetDefault("gateway.token_skew_secs", 60)
    v.SetDefault("gateway.token_ttl_min", 30)

    v.SetDefault("org.name", "the business")
    v.SetDefault("org.location_mode", "on_site")
    v.SetDefault("org.greeting", "Thanks for calling. How can I help you today?")

    // Map envs
    v.BindEnv("server.port", "PORT")
    v.BindEnv("server.log_level", "LOG_LEVEL")

    v.BindEnv("intent.endpoint", "INTENT_ENDPOINT")
    v.BindEnv("intent.api_key", "INTENT_API_KEY")
    v.BindEnv("intent.min_confidence", "INTENT_MIN_CONFIDENCE")
    v.BindEnv("intent.timeout_ms", "INTENT_TIMEOUT_MS")

    v.BindEnv("scheduler.endpoint", "SCHEDULER_ENDPOINT")
    v.BindEnv("scheduler.api_key", "SCHEDULER_API_KEY")
    v.BindEnv("scheduler.timeout_ms", "SCHEDULER_TIMEOUT_MS")

    v.BindEnv("booking.confirm_threshold", "BOOKING_CONFIRM_THRESHOLD")
    v.BindEnv("booking.retry_ceiling", "BOOKING_RETRY_CEILING")
    v.BindEnv("booking.digression_cap", "BOOKING_DIGRESSION_CAP")
    v.BindEnv("booking.turn_timeout_ms", "BOOKING_TURN_TIMEOUT_MS")

    v.BindEnv("gateway.token_secret", "GATEWAY_TOKEN_SECRET")
    v.BindEnv("gateway.token_skew_secs", "GATEWAY_TOKEN_SKEW_SECS")
    v.BindEnv("gateway.token_ttl_min", "GATEWAY_TOKEN_TTL_MIN")

    v.BindEnv("org.name", "ORG_NAME")
    v.BindEnv("org.services", "ORG_SERVICES")
    v.BindEnv("org.hours", "ORG_HOURS")
    v.BindEnv("org.location", "ORG_LOCATION")
    v.BindEnv("org.location_mode", "ORG_LOCATION_MODE")
    v.BindEnv("org.greeting", "ORG_GREETING")

    var c Config
    c.Server.Port = v.GetString("server.port")
    c.Server.LogLevel = v.GetString("server.log_level")

    c.Intent.Endpoint = v.GetString("intent.endpoint")
    c.Intent.APIKey = v.GetString("intent.api_key")
    c.Intent.MinConfidence = v.GetFloat64("intent.min_confidence")
    c.Intent.TimeoutMs = v.GetInt("intent.timeout_ms")

    c.Scheduler.Endpoint = v.GetString("scheduler.endpoint")
    c.Scheduler.APIKey = v.GetString("scheduler.api_key")
    c.Scheduler.TimeoutMs = v.GetInt("scheduler.timeout_ms")

    c.Booking.ConfirmThreshold = v.GetInt("booking.confirm_threshold")
    c.Booking.RetryCeiling = v.GetInt("booking.retry_ceiling")
    c.Booking.DigressionCap = v.GetInt("booking.digression_cap")
    c.Booking.TurnTimeoutMs = v.GetInt("booking.turn_timeout_ms")

    c.Gateway.TokenSecret = v.GetString("gateway.token_secret")
    c.Gateway.TokenSkewSecs = v.GetInt("gateway.token_skew_secs")
    c.Gateway.TokenTTLMin = v.GetInt("gateway.token_ttl_min")

    c.Org.Name = v.GetString("org.name")
    c.Org.Services = v.GetString("org.services")
    c.Org.Hours = v.GetString("org.hours")
    c.Org.Location = v.GetString("org.location")
    c.Org.LocationMode = v.GetString("org.location_mode")
    c.Org.Greeting = v.GetString("org.greeting")

    log.Printf("config loaded: port=%s intent_endpoint=%s scheduler_endpoint=%s", c.Server.Port, c.Intent.Endpoint, c.Scheduler.Endpoint)
    return c
}
