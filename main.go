package main

import (
	"encoding/base64"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	easy "git.fiblab.net/utils/logrus-easy-formatter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/parking-sim/task"
	"github.com/tsinghua-fib-lab/parking-sim/utils/config"
	"github.com/tsinghua-fib-lab/parking-sim/utils/metrics"
)

var (
	// 配置文件路径，为空且未给出config-data时使用默认配置
	configPath = flag.String("config", "", "config file path")
	// 配置文件Base64编码后的数据
	configData = flag.String("config-data", "", "config file base64 encoded data")
	// 覆盖配置中的入场车辆数（<0表示不覆盖）
	fill = flag.Int("fill", -1, "number of vehicles to fill the lot with (overrides control.fill)")

	// log
	logLevels = map[string]logrus.Level{
		"trace":    logrus.TraceLevel,
		"debug":    logrus.DebugLevel,
		"info":     logrus.InfoLevel,
		"warn":     logrus.WarnLevel,
		"error":    logrus.ErrorLevel,
		"critical": logrus.FatalLevel,
		"off":      logrus.PanicLevel,
	}
	logLevel = flag.String("log.level", "info", "日志级别（可选项：trace debug info warn error critical off）")

	log = logrus.WithField("module", "parking-sim")
)

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
		log.Info("no config given, using defaults")
	}
	c, err := config.Load(file)
	if err != nil {
		log.Panicf("config file load err: %v", err)
	}
	if *fill >= 0 {
		c.Control.Fill = *fill
	}
	return c
}

func main() {
	flag.Parse()
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	// log: 运行时才修改
	if level, ok := logLevels[*logLevel]; ok {
		logrus.SetLevel(level)
	} else {
		log.Panicf("log.level must be one of %v", logLevels)
	}
	c := loadConfig()
	log.Infof("%+v", c)

	var mc *metrics.Collector
	if c.Metrics.Listen != "" {
		reg := prometheus.NewRegistry()
		var err error
		if mc, err = metrics.New(reg); err != nil {
			log.Panicf("metrics init err: %v", err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(mc.Gatherer(), promhttp.HandlerOpts{}))
		go func() {
			log.Infof("metrics listening on %s", c.Metrics.Listen)
			if err := http.ListenAndServe(c.Metrics.Listen, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("metrics server: %v", err)
			}
		}()
	}

	t := task.NewContext(c, mc)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		s := <-sig
		log.Infof("received %v, stopping", s)
		t.Close()
	}()

	t.Run()
}
