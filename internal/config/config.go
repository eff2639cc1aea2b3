package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"
)

const (
	CMD             = "cmd"
	CONFIG_FILE     = "config"
	LOG_LEVEL       = "log.level"
	LOG_FORMAT      = "log.format"
	CACHE_PATH      = "cache.path"
	CALENDAR_SOURCE = "calendar.source"
	CALENDAR_URL    = "calendar.url"
	CALENDAR_PATH   = "calendar.path"
	CALENDAR_USER   = "calendar.user"
	CALENDAR_PASS   = "calendar.pass"
	GITHUB_TOKEN    = "github.token"
	GITHUB_URL      = "github.url"
	SERVER_LISTEN   = "server.listen"
	SERVER_CORS     = "server.cors"
	WATCH_CRON      = "watch.cron"
	WATCH_PRUNE     = "watch.prune_cron"
	prefix          = "DAILYBRIEF_"
)

// Calendar source kinds.
const (
	SourceNone    = "none"
	SourceICSURL  = "ics_url"
	SourceICSFile = "ics_file"
	SourceCalDAV  = "caldav"
)

var defaults = map[string]any{
	LOG_LEVEL:       "info",
	LOG_FORMAT:      "json",
	CACHE_PATH:      "dailybrief-cache.json",
	CALENDAR_SOURCE: SourceNone,
	GITHUB_URL:      "https://api.github.com",
	SERVER_LISTEN:   "127.0.0.1:8470",
	SERVER_CORS:     true,
	WATCH_CRON:      "0 */15 * * * * *",
	WATCH_PRUNE:     "0 0 */1 * * * *",
}

type Calendar struct {
	Source string
	URL    string
	Path   string
	User   string
	Pass   string
}

// Configured reports whether a calendar source is set up.
func (c Calendar) Configured() bool {
	switch c.Source {
	case SourceICSURL, SourceCalDAV:
		return c.URL != ""
	case SourceICSFile:
		return c.Path != ""
	default:
		return false
	}
}

type GitHub struct {
	Token string
	URL   string
}

func (g GitHub) Configured() bool {
	return g.Token != ""
}

type Server struct {
	Listen string
	CORS   bool
}

type Watch struct {
	Cron      string
	PruneCron string
}

// Config is the resolved application configuration. It is passed explicitly
// to every component that needs it.
type Config struct {
	Cmd       string
	LogLevel  string
	LogFormat string
	CachePath string
	Calendar  Calendar
	GitHub    GitHub
	Server    Server
	Watch     Watch
}

func Sprint() string {
	sb := strings.Builder{}
	sb.WriteString("cmd|required|-\n")
	sb.WriteString("config|optional|-\n")
	sb.WriteString("log_level|optional|info\n")
	sb.WriteString("log_format|optional|json\n")
	sb.WriteString("cache_path|optional|dailybrief-cache.json\n")
	sb.WriteString("calendar_source|optional|none (none, ics_url, ics_file, caldav)\n")
	sb.WriteString("calendar_url|optional|-\n")
	sb.WriteString("calendar_path|optional|-\n")
	sb.WriteString("calendar_user|optional|-\n")
	sb.WriteString("calendar_pass|optional|-\n")
	sb.WriteString("github_token|optional|-\n")
	sb.WriteString("github_url|optional|https://api.github.com\n")
	sb.WriteString("server_listen|optional|127.0.0.1:8470\n")
	sb.WriteString("server_cors|optional|true\n")
	sb.WriteString("watch_cron|optional|0 */15 * * * * *\n")
	sb.WriteString("watch_prune_cron|optional|0 0 */1 * * * *\n")
	return sb.String()
}

// Load resolves configuration from defaults, an optional YAML file, the
// environment (DAILYBRIEF_CALENDAR_URL -> calendar.url) and flags, in
// increasing priority.
func Load(args []string) (Config, error) {
	cfg := koanf.New(".")
	for k, v := range defaults {
		if err := cfg.Set(k, v); err != nil {
			return Config{}, errors.Wrapf(err, "error setting default %s", k)
		}
	}

	f := flag.NewFlagSet("config", flag.ContinueOnError)
	f.Usage = func() {
		fmt.Println(f.FlagUsages())
	}
	f.String(CMD, "", "application run mode")
	f.String(CONFIG_FILE, "", "path to a yaml config file")
	f.String(LOG_LEVEL, "info", "log level")
	f.String(LOG_FORMAT, "json", "log format (json, console)")
	f.String(CACHE_PATH, "dailybrief-cache.json", "cache file path")
	f.String(CALENDAR_SOURCE, SourceNone, "calendar source (none, ics_url, ics_file, caldav)")
	f.String(CALENDAR_URL, "", "ics or caldav url")
	f.String(CALENDAR_PATH, "", "ics file path or caldav calendar path")
	f.String(CALENDAR_USER, "", "calendar basic auth user")
	f.String(CALENDAR_PASS, "", "calendar basic auth password")
	f.String(GITHUB_TOKEN, "", "github api token")
	f.String(GITHUB_URL, "https://api.github.com", "github api base url")
	f.String(SERVER_LISTEN, "127.0.0.1:8470", "http listen address")
	f.Bool(SERVER_CORS, true, "allow cross-origin requests")
	f.String(WATCH_CRON, "0 */15 * * * * *", "brief refresh schedule")
	f.String(WATCH_PRUNE, "0 0 */1 * * * *", "cache prune schedule")
	if err := f.Parse(args); err != nil {
		return Config{}, errors.Wrap(err, "error parsing flags")
	}

	if path, _ := f.GetString(CONFIG_FILE); path != "" {
		if err := cfg.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, errors.Wrapf(err, "error loading config file %s", path)
		}
	}
	if err := cfg.Load(env.Provider(prefix, ".", envKey), nil); err != nil {
		return Config{}, errors.Wrap(err, "error loading environment")
	}
	if err := cfg.Load(posflag.Provider(f, ".", cfg), nil); err != nil {
		return Config{}, errors.Wrap(err, "error loading flags")
	}

	out := Config{
		Cmd:       cfg.String(CMD),
		LogLevel:  cfg.String(LOG_LEVEL),
		LogFormat: cfg.String(LOG_FORMAT),
		CachePath: cfg.String(CACHE_PATH),
		Calendar: Calendar{
			Source: strings.ToLower(cfg.String(CALENDAR_SOURCE)),
			URL:    cfg.String(CALENDAR_URL),
			Path:   cfg.String(CALENDAR_PATH),
			User:   cfg.String(CALENDAR_USER),
			Pass:   cfg.String(CALENDAR_PASS),
		},
		GitHub: GitHub{
			Token: cfg.String(GITHUB_TOKEN),
			URL:   cfg.String(GITHUB_URL),
		},
		Server: Server{
			Listen: cfg.String(SERVER_LISTEN),
			CORS:   cfg.Bool(SERVER_CORS),
		},
		Watch: Watch{
			Cron:      cfg.String(WATCH_CRON),
			PruneCron: cfg.String(WATCH_PRUNE),
		},
	}
	if err := out.Validate(); err != nil {
		return Config{}, err
	}
	return out, nil
}

func (c Config) Validate() error {
	switch c.Calendar.Source {
	case SourceNone, SourceICSURL, SourceICSFile, SourceCalDAV:
	default:
		return errors.Errorf("unknown calendar source %q", c.Calendar.Source)
	}
	if c.CachePath == "" {
		return errors.New("cache path must not be empty")
	}
	return nil
}

// SetupLogging applies the log level and format to the global zerolog logger.
func SetupLogging(c Config) error {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return errors.Wrap(err, "error parsing log level")
	}
	zerolog.SetGlobalLevel(lvl)
	if c.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	printCfg(c)
	return nil
}

func envKey(s string) string {
	return strings.Replace(strings.ToLower(strings.TrimPrefix(s, prefix)), "_", ".", 1)
}

func printCfg(c Config) {
	log.Debug().Msgf("cmd: %s", c.Cmd)
	log.Debug().Msgf("log_level: %s", c.LogLevel)
	log.Debug().Msgf("cache_path: %s", c.CachePath)
	log.Debug().Msgf("calendar_source: %s", c.Calendar.Source)
	log.Debug().Msgf("calendar_url: %s", c.Calendar.URL)
	log.Debug().Msgf("calendar_path: %s", c.Calendar.Path)
	log.Debug().Msgf("calendar_user: %s", c.Calendar.User)
	log.Debug().Bool("github_configured", c.GitHub.Configured()).Msgf("github_url: %s", c.GitHub.URL)
	log.Debug().Msgf("server_listen: %s", c.Server.Listen)
}
