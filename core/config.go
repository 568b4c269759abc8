package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lisuiheng/dspstream/audio"
	"github.com/lisuiheng/dspstream/audio/source"
	"github.com/spf13/viper"
)

// Config 对应 YAML 配置文件的结构
type Config struct {
	Stream struct {
		SampleRate int           `mapstructure:"sample_rate"`
		Frames     int           `mapstructure:"frames"`
		Channels   int           `mapstructure:"channels"`
		OutputMode string        `mapstructure:"output_mode"`
		RunFor     time.Duration `mapstructure:"run_for"`
	} `mapstructure:"stream"`

	Device struct {
		Backend   string `mapstructure:"backend"`
		WAVInput  string `mapstructure:"wav_input"`
		WAVOutput string `mapstructure:"wav_output"`
	} `mapstructure:"device"`

	Graph struct {
		Nodes []NodeConfig `mapstructure:"nodes"`
	} `mapstructure:"graph"`

	Monitor struct {
		Enabled       bool   `mapstructure:"enabled"`
		URL           string `mapstructure:"url"`
		AccessToken   string `mapstructure:"access_token"`
		Format        string `mapstructure:"format"`
		Bitrate       int    `mapstructure:"bitrate"`
		FrameDuration int    `mapstructure:"frame_duration"`
		QueueSize     int    `mapstructure:"queue_size"`
	} `mapstructure:"monitor"`

	Logging struct {
		Level   string   `mapstructure:"level"`
		Format  string   `mapstructure:"format"`
		Outputs []string `mapstructure:"outputs"`
	} `mapstructure:"logging"`
}

// NodeConfig 挂在根节点下的一个源节点
type NodeConfig struct {
	Type      string   `mapstructure:"type"` // sine/constant/file
	Frequency float64  `mapstructure:"frequency"`
	Amplitude float32  `mapstructure:"amplitude"`
	Value     float32  `mapstructure:"value"`
	Path      string   `mapstructure:"path"` // wav/mp3/ogg
	Loop      bool     `mapstructure:"loop"`
	Gain      *float32 `mapstructure:"gain"` // 未设置时不加增益节点，0 表示静音
}

// setDefaults 为每个标量键设置默认值：AutomaticEnv 只覆盖 viper 已知的键
func setDefaults(v *viper.Viper) {
	v.SetDefault("stream.sample_rate", 44100)
	v.SetDefault("stream.frames", 128)
	v.SetDefault("stream.channels", 2)
	v.SetDefault("stream.output_mode", string(OutputPassthrough))
	v.SetDefault("stream.run_for", "3s")
	v.SetDefault("device.backend", "portaudio")
	v.SetDefault("device.wav_input", "")
	v.SetDefault("device.wav_output", "")
	v.SetDefault("monitor.enabled", false)
	v.SetDefault("monitor.url", "")
	v.SetDefault("monitor.access_token", "")
	v.SetDefault("monitor.format", "pcm")
	v.SetDefault("monitor.bitrate", 64000)
	v.SetDefault("monitor.frame_duration", 20)
	v.SetDefault("monitor.queue_size", 64)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.outputs", []string{"stdout"})
}

// LoadConfig 加载配置文件。path 为空时按默认路径搜索，找不到文件就使用默认值。
// 环境变量 DSPSTREAM_<SECTION>_<KEY> 覆盖文件中的值。
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix("DSPSTREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		// 使用命令行指定的路径
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	} else {
		// 默认多路径搜索
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/dspstream")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// Settings 由配置构建流参数
func (c Config) Settings() (audio.Settings, error) {
	return audio.NewSettings(c.Stream.SampleRate, c.Stream.Frames, c.Stream.Channels)
}

// GraphBuilder 把配置中的节点挂到根节点下，按配置顺序混音
func (c Config) GraphBuilder() func(g *audio.Graph, root audio.NodeID) error {
	nodes := append([]NodeConfig(nil), c.Graph.Nodes...)
	return func(g *audio.Graph, root audio.NodeID) error {
		s := g.Settings()
		for i, nc := range nodes {
			var proc audio.Processor
			switch nc.Type {
			case "sine":
				proc = audio.NewSine(nc.Frequency, nc.Amplitude)
			case "constant":
				proc = audio.Constant(nc.Value)
			case "file":
				clip, err := source.Load(nc.Path)
				if err != nil {
					return fmt.Errorf("%w: graph node %d: %v", audio.ErrInvalidConfiguration, i, err)
				}
				player, err := source.NewPlayer(clip, s, nc.Loop)
				if err != nil {
					return err
				}
				proc = player
			default:
				return fmt.Errorf("%w: graph node %d has unknown type %q", audio.ErrInvalidConfiguration, i, nc.Type)
			}

			id, err := g.AddNode(s, proc)
			if err != nil {
				return err
			}
			if nc.Gain != nil && *nc.Gain != 1 {
				gain, err := g.AddNode(s, audio.Gain(*nc.Gain))
				if err != nil {
					return err
				}
				if err := g.AddInput(gain, id); err != nil {
					return err
				}
				id = gain
			}
			if err := g.AddInput(root, id); err != nil {
				return err
			}
		}
		return nil
	}
}
