package properties

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

func RootPath() string {
	if root := os.Getenv("ROOT_PATH"); root != "" {
		return root
	}
	return "."
}

func DiscordErrorNotificationUrl() string {
	return os.Getenv("DISCORD_ERROR_NOTIFICATION_URL")
}

func DiscordSuccessNotificationUrl() string {
	return os.Getenv("DISCORD_SUCCESS_NOTIFICATION_URL")
}

const (
	DefaultTokenURL   = "https://identity.dataspace.copernicus.eu/auth/realms/CDSE/protocol/openid-connect/token"
	DefaultProcessURL = "https://sh.dataspace.copernicus.eu/api/v1/process"
)

type Credential struct {
	ClientID     string
	ClientSecret string
}

type Copernicus struct {
	Credentials []Credential
	TokenURL    string
	ProcessURL  string
}

type Grid struct {
	Precision       int
	CoarsePrecision int
}

type Plan struct {
	IntervalDays int
	SamplingRate float64
	Seed         int64
}

type Fetch struct {
	Workers   int
	Attempts  int
	RetryWait time.Duration
}

type Discord struct {
	ErrorURL   string
	SuccessURL string
}

type Config struct {
	RootPath   string
	Copernicus Copernicus
	Grid       Grid
	Plan       Plan
	Fetch      Fetch
	Port       int
	Discord    Discord
}

// Load reads the given .env files, when present, and builds the
// configuration from the environment. Variables already set win over the
// files.
func Load(envFiles ...string) (Config, error) {
	for _, file := range envFiles {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return Config{}, fmt.Errorf("error loading %s: %w", file, err)
		}
	}

	var errs []string
	intVar := func(name string, def int) int {
		v, err := envInt(name, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return v
	}

	cfg := Config{
		RootPath: RootPath(),
		Copernicus: Copernicus{
			TokenURL:   envString("COPERNICUS_TOKEN_URL", DefaultTokenURL),
			ProcessURL: envString("COPERNICUS_PROCESS_URL", DefaultProcessURL),
		},
		Grid: Grid{
			Precision:       intVar("GEOTILE_PRECISION", 5),
			CoarsePrecision: intVar("GEOTILE_COARSE_PRECISION", 0),
		},
		Plan: Plan{
			IntervalDays: intVar("GEOTILE_INTERVAL_DAYS", 30),
		},
		Fetch: Fetch{
			Workers:  intVar("GEOTILE_WORKERS", 30),
			Attempts: intVar("GEOTILE_FETCH_ATTEMPTS", 4),
		},
		Port: intVar("GEOTILE_PORT", 8080),
		Discord: Discord{
			ErrorURL:   DiscordErrorNotificationUrl(),
			SuccessURL: DiscordSuccessNotificationUrl(),
		},
	}

	rate, err := envFloat("GEOTILE_SAMPLING_RATE", 1)
	if err != nil {
		errs = append(errs, err.Error())
	}
	cfg.Plan.SamplingRate = rate

	seed, err := envInt64("GEOTILE_SEED", 0)
	if err != nil {
		errs = append(errs, err.Error())
	}
	cfg.Plan.Seed = seed

	wait, err := envDuration("GEOTILE_FETCH_RETRY_WAIT", 2*time.Second)
	if err != nil {
		errs = append(errs, err.Error())
	}
	cfg.Fetch.RetryWait = wait

	creds, err := credentials(os.Getenv("COPERNICUS_CLIENT_ID"), os.Getenv("COPERNICUS_CLIENT_SECRET"))
	if err != nil {
		errs = append(errs, err.Error())
	}
	cfg.Copernicus.Credentials = creds

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// credentials pairs comma separated client ids and secrets by position.
func credentials(ids, secrets string) ([]Credential, error) {
	if ids == "" && secrets == "" {
		return nil, nil
	}
	idList := strings.Split(ids, ",")
	secretList := strings.Split(secrets, ",")
	if len(idList) != len(secretList) {
		return nil, fmt.Errorf("mismatched number of client IDs (%d) and secrets (%d)", len(idList), len(secretList))
	}
	creds := make([]Credential, 0, len(idList))
	for i := range idList {
		creds = append(creds, Credential{
			ClientID:     strings.TrimSpace(idList[i]),
			ClientSecret: strings.TrimSpace(secretList[i]),
		})
	}
	return creds, nil
}

func envString(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func envInt(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s=%q is not an integer", name, v)
	}
	return n, nil
}

func envInt64(name string, def int64) (int64, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def, fmt.Errorf("%s=%q is not an integer", name, v)
	}
	return n, nil
}

func envFloat(name string, def float64) (float64, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def, fmt.Errorf("%s=%q is not a number", name, v)
	}
	return f, nil
}

func envDuration(name string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("%s=%q is not a duration", name, v)
	}
	return d, nil
}
