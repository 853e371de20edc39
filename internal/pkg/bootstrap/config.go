// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"log"
	"os"
	"sync/atomic"

	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	"github.com/nacos-group/nacos-sdk-go/v2/clients/config_client"
	"github.com/nacos-group/nacos-sdk-go/v2/common/constant"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	"gopkg.in/yaml.v3"
)

// Config 是服务的全量配置，本地 YAML 提供兜底，
// Nacos 配置中心可在运行期热更新。
type Config struct {
	App struct {
		FeatureFlags struct {
			// EnableUsageEvents 控制是否向 Kafka 发布折扣应用事件
			EnableUsageEvents bool `yaml:"enableUsageEvents"`
		} `yaml:"featureFlags"`
	} `yaml:"app"`

	Infra struct {
		Mysql struct {
			DSN string `yaml:"dsn"`
		} `yaml:"mysql"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
		Kafka struct {
			Brokers    []string `yaml:"brokers"`
			UsageTopic string   `yaml:"usageTopic"`
		} `yaml:"kafka"`
		Jaeger struct {
			Endpoint string `yaml:"endpoint"`
		} `yaml:"jaeger"`
		Zookeeper struct {
			Servers []string `yaml:"servers"`
		} `yaml:"zookeeper"`
	} `yaml:"infra"`
}

var (
	currentConfig     atomic.Value // *Config
	nacosConfigClient config_client.IConfigClient
)

// GetCurrentConfig 返回当前生效的配置快照。
func GetCurrentConfig() *Config {
	if c, ok := currentConfig.Load().(*Config); ok {
		return c
	}
	return defaultConfig()
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.Infra.Mysql.DSN = "root:root@tcp(localhost:3306)/mercato?charset=utf8mb4&parseTime=True&loc=Local"
	cfg.Infra.Redis.Addr = "localhost:6379"
	cfg.Infra.Kafka.Brokers = []string{"localhost:9092"}
	cfg.Infra.Kafka.UsageTopic = "discount-usage-events"
	cfg.Infra.Jaeger.Endpoint = "http://localhost:14268/api/traces"
	cfg.Infra.Zookeeper.Servers = []string{"localhost:2181"}
	cfg.App.FeatureFlags.EnableUsageEvents = true
	return cfg
}

// Init 加载配置：先本地 YAML，再尝试从 Nacos 配置中心覆盖并监听变更。
// 必须在 StartService 之前调用。
func Init() {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("FATAL: cannot read config file %s: %v", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			log.Fatalf("FATAL: cannot parse config file %s: %v", path, err)
		}
		log.Printf("Loaded local config from %s", path)
	}
	currentConfig.Store(cfg)

	dataID := os.Getenv("NACOS_CONFIG_DATA_ID")
	if dataID == "" {
		return
	}
	initNacosConfig(dataID)
}

// initNacosConfig 从 Nacos 拉取配置并注册变更监听。
// 配置中心不可用时退回本地配置，不阻塞启动。
func initNacosConfig(dataID string) {
	addrs := getEnv("NACOS_SERVER_ADDRS", "localhost:8848")
	namespace := os.Getenv("NACOS_NAMESPACE")
	group := getEnv("NACOS_GROUP", "DEFAULT_GROUP")

	serverConfigs, err := parseNacosServerAddrs(addrs)
	if err != nil {
		log.Printf("WARN: invalid nacos server address, skipping config center: %v", err)
		return
	}
	clientConfig := *constant.NewClientConfig(
		constant.WithNotLoadCacheAtStart(true),
		constant.WithLogDir("/tmp/nacos/log"),
		constant.WithCacheDir("/tmp/nacos/cache"),
		constant.WithLogLevel("warn"),
		constant.WithNamespaceId(namespace),
	)

	client, err := clients.NewConfigClient(vo.NacosClientParam{
		ClientConfig:  &clientConfig,
		ServerConfigs: serverConfigs,
	})
	if err != nil {
		log.Printf("WARN: failed to create nacos config client, using local config: %v", err)
		return
	}
	nacosConfigClient = client

	content, err := client.GetConfig(vo.ConfigParam{DataId: dataID, Group: group})
	if err != nil {
		log.Printf("WARN: failed to fetch config from nacos, using local config: %v", err)
		return
	}
	applyRemoteConfig(content)

	err = client.ListenConfig(vo.ConfigParam{
		DataId: dataID,
		Group:  group,
		OnChange: func(namespace, group, dataId, data string) {
			log.Printf("Config change detected from nacos (dataId=%s)", dataId)
			applyRemoteConfig(data)
		},
	})
	if err != nil {
		log.Printf("WARN: failed to listen for nacos config changes: %v", err)
	}
}

// applyRemoteConfig 原子替换当前配置快照。
func applyRemoteConfig(content string) {
	cfg := defaultConfig()
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		log.Printf("ERROR: invalid config from nacos, keeping current config: %v", err)
		return
	}
	currentConfig.Store(cfg)
	log.Println("Config applied from nacos config center.")
}
