package config

import (
	"os"
	"strconv"
	"strings"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string
	HTTPPort     string
	PostgresDSN  string
	KafkaBrokers []string

	// DeployerAddress receives the genesis supply and holds ledger ownership
	// until bootstrap hands it to the engine.
	DeployerAddress string
	// EngineAddress is the marketplace engine's own ledger identity. It is the
	// spender named in consumer approvals and becomes the ledger owner.
	EngineAddress string

	// Amounts are ledger base units (1 whole token = 1_000_000 base units).
	GenesisSupply uint64
	GrantAmount   uint64
}

const baseUnitsPerToken = 1_000_000

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "stornet"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	var brokers []string
	for _, value := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	deployer := strings.TrimSpace(os.Getenv("LEDGER_DEPLOYER_ADDRESS"))
	if deployer == "" {
		deployer = "stornet-deployer"
	}
	engine := strings.TrimSpace(os.Getenv("MARKET_ENGINE_ADDRESS"))
	if engine == "" {
		engine = "stornet-market-engine"
	}

	return Config{
		ServiceName:  service,
		HTTPPort:     port,
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		KafkaBrokers: brokers,

		DeployerAddress: deployer,
		EngineAddress:   engine,

		GenesisSupply: envUint("LEDGER_GENESIS_SUPPLY", 100_000*baseUnitsPerToken),
		GrantAmount:   envUint("MARKET_GRANT_AMOUNT", 10_000*baseUnitsPerToken),
	}, nil
}

func envUint(name string, fallback uint64) uint64 {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return value
}
