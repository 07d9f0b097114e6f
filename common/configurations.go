package common

import (
	"fmt"
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Configurations exported
type Configurations struct {
	Server      ServerConfigurations
	Proposal    ProposalConfigurations
	Idempotency IdempotencyConfigurations
	Broadcast   BroadcastConfigurations
}

// ServerConfigurations exported
type ServerConfigurations struct {
	Port string
}

// ProposalConfigurations exported
type ProposalConfigurations struct {
	ExpiryHours int
}

// IdempotencyConfigurations exported
type IdempotencyConfigurations struct {
	TTLMinutes int
}

// BroadcastConfigurations exported
type BroadcastConfigurations struct {
	TimeoutSeconds int
	Endpoints      map[string]string // blockchainId -> broadcast node gateway URL
}

// ExpiryHorizon is the absolute proposal lifetime from creation.
func (c Configurations) ExpiryHorizon() time.Duration {
	if c.Proposal.ExpiryHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Proposal.ExpiryHours) * time.Hour
}

// IdempotencyTTL bounds the replay-protection window.
func (c Configurations) IdempotencyTTL() time.Duration {
	if c.Idempotency.TTLMinutes <= 0 {
		return 24 * 60 * time.Minute
	}
	return time.Duration(c.Idempotency.TTLMinutes) * time.Minute
}

// BroadcastTimeout bounds the outbound broadcast call.
func (c Configurations) BroadcastTimeout() time.Duration {
	if c.Broadcast.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Broadcast.TimeoutSeconds) * time.Second
}

var (
	configOnce     sync.Once
	configurations Configurations
)

// Config loads config_dev.yaml or config_prod.yaml once, selected by
// WORKING_ENVIRONMENT, with env-var overrides enabled.
func Config() Configurations {
	configOnce.Do(func() {
		configName := "dev"
		if os.Getenv(WorkingEnvironment) == "production" {
			configName = "prod"
		}

		// Set the file name of the configurations file
		viper.SetConfigName("config_" + configName)

		// Set the path to look for the configurations file
		viper.AddConfigPath(".")

		// Enable VIPER to read Environment Variables
		viper.AutomaticEnv()

		viper.SetConfigType("yaml")

		if err := viper.ReadInConfig(); err != nil {
			fmt.Printf("Error reading config file, %s\n", err)
		}

		if err := viper.Unmarshal(&configurations); err != nil {
			fmt.Printf("Unable to decode into struct, %v\n", err)
		}
	})

	return configurations
}

type ENVConfigs struct {
	WorkingEnvironment      string
	MongoDbConnectionString string
	MongoDatabase           string
	WalletsCollection       string
	ProposalsCollection     string
	AuditCollection         string
	GinMode                 string
	RedisHost               string
	RedisPort               string
	BroadcastAccessToken    string
}

var (
	envOnce sync.Once
	envVars *ENVConfigs
)

// ENV reads all environment variables once to avoid future fatals.
func ENV() *ENVConfigs {
	envOnce.Do(func() {
		getOrFatal := func(envVarName string) string {
			variable, ok := os.LookupEnv(envVarName)
			if !ok {
				log.Fatal("missing environment variable: ", envVarName)
			}
			return variable
		}

		env := ENVConfigs{}
		env.WorkingEnvironment = getOrFatal(WorkingEnvironment)
		env.MongoDbConnectionString = getOrFatal(MongoDbConnectionString)
		env.MongoDatabase = getOrFatal(MongoDatabase)
		env.WalletsCollection = getOrFatal(WalletsCollection)
		env.ProposalsCollection = getOrFatal(ProposalsCollection)
		env.AuditCollection = getOrFatal(AuditCollection)
		env.GinMode = getOrFatal(GinMode)
		env.RedisHost = getOrFatal(RedisHost)
		env.RedisPort = getOrFatal(RedisPort)
		env.BroadcastAccessToken = getOrFatal(BroadcastAccessToken)
		envVars = &env
	})

	return envVars
}
