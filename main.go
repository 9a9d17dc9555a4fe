package main

import (
	"encoding/base64"
	"flag"
	"os"

	"git.fiblab.net/sim/syncer/v3"
	easy "git.fiblab.net/utils/logrus-easy-formatter"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/agentsociety-parking/task"
	"github.com/tsinghua-fib-lab/agentsociety-parking/utils/config"
	"gopkg.in/yaml.v2"
)

var (
	// syncer地址，为空时独立运行
	syncerAddr = flag.String("syncer", "", "syncer address (empty means standalone mode), e.g. http://localhost:53001")
	job        = flag.String("job", "job0", "the name of the whole simulation task")
	listenAddr = flag.String("listen", ":51102", "RPC listening address (clock and parking query services)")
	configPath = flag.String("config", "", "config file path")
	configData = flag.String("config-data", "", "config file base64 encoded data")
	logLevel   = flag.String("log.level", "info", "日志级别（可选项：trace debug info warn error critical off）")

	log = logrus.WithField("module", "parking-sim")
)

// loadConfig 从配置文件或Base64数据读取配置
func loadConfig() config.Config {
	var file []byte
	var err error
	switch {
	case *configPath != "":
		file, err = os.ReadFile(*configPath)
		if err != nil {
			log.Panicf("config file load err: %v", err)
		}
	case *configData != "":
		file, err = base64.StdEncoding.DecodeString(*configData)
		if err != nil {
			log.Panicf("config data load err: %v", err)
		}
	default:
		log.Panic("config file or config data must be specified")
	}
	var c config.Config
	if err := yaml.UnmarshalStrict(file, &c); err != nil {
		log.Panicf("config file load err: %v", err)
	}
	return c
}

// parseLevel 解析日志级别，critical与off分别对应fatal与panic
func parseLevel(s string) (logrus.Level, error) {
	switch s {
	case "critical":
		return logrus.FatalLevel, nil
	case "off":
		return logrus.PanicLevel, nil
	}
	return logrus.ParseLevel(s)
}

func main() {
	flag.Parse()
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	level, err := parseLevel(*logLevel)
	if err != nil {
		log.Panicf("bad log.level: %v", err)
	}
	logrus.SetLevel(level)

	c := loadConfig()
	log.Infof("config: %+v", c)

	sidecar := syncer.NewSidecar(task.SelfName, *listenAddr, *syncerAddr)
	t := task.NewContext(*job, c, sidecar, true)
	t.Run()
}
