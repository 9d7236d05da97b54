// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaultConfig registers defaults for every configuration key.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("camera.url", "")
	viper.SetDefault("camera.detectionfps", 2.0)
	viper.SetDefault("camera.bufferseconds", 60)
	viper.SetDefault("camera.buffercapacity", 900)
	viper.SetDefault("camera.reconnectdelay", 5*time.Second)
	viper.SetDefault("camera.maxreconnectdelay", 60*time.Second)

	viper.SetDefault("accelerator.enabled", true)
	viper.SetDefault("accelerator.devicepaths", []string{"/dev/apex_0", "/dev/bus/usb"})
	viper.SetDefault("accelerator.threads", 0)

	viper.SetDefault("motion.enabled", true)
	viper.SetDefault("motion.minarea", 500)
	viper.SetDefault("motion.history", 50)
	viper.SetDefault("motion.varthreshold", 16)

	viper.SetDefault("daylight.enabled", false)
	viper.SetDefault("daylight.latitude", 0.0)
	viper.SetDefault("daylight.longitude", 0.0)

	viper.SetDefault("detection.modelpath", "models/efficientdet_lite0.tflite")
	viper.SetDefault("detection.acceleratormodelpath", "models/efficientdet_lite0_edgetpu.tflite")
	viper.SetDefault("detection.confidence", 0.5)
	viper.SetDefault("detection.inputsize", 320)
	viper.SetDefault("detection.targetclass", 16)
	viper.SetDefault("detection.zone", [][]float64{})

	viper.SetDefault("classification.modelpath", "models/mobilenet_v2_1.0_224_inat_bird_quant.tflite")
	viper.SetDefault("classification.acceleratormodelpath", "models/mobilenet_v2_1.0_224_inat_bird_quant_edgetpu.tflite")
	viper.SetDefault("classification.labelspath", "models/inat_bird_labels.txt")
	viper.SetDefault("classification.namesdb", "")
	viper.SetDefault("classification.threshold", 0.7)
	viper.SetDefault("classification.inputsize", 224)
	viper.SetDefault("classification.backgroundindex", 964)

	viper.SetDefault("tracker.maxmissingframes", 10)
	viper.SetDefault("tracker.iouthreshold", 0.3)

	viper.SetDefault("clips.enabled", true)
	viper.SetDefault("clips.precapture", 3*time.Second)
	viper.SetDefault("clips.postcapture", 2*time.Second)
	viper.SetDefault("clips.fps", 15.0)
	viper.SetDefault("clips.maxduration", 60*time.Second)
	viper.SetDefault("clips.transcode", true)
	viper.SetDefault("clips.ffmpegpath", "ffmpeg")
	viper.SetDefault("clips.timeout", 60*time.Second)

	viper.SetDefault("storage.path", "data")
	viper.SetDefault("storage.retentiondays", 30)
	viper.SetDefault("storage.snapshotquality", 95)
	viper.SetDefault("storage.cleanupinterval", time.Hour)

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "data/birdview.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")
	viper.SetDefault("output.mysql.username", "")
	viper.SetDefault("output.mysql.password", "")
	viper.SetDefault("output.mysql.database", "birdview")

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.topicprefix", "birdfeeder")
	viper.SetDefault("mqtt.retain", false)
	viper.SetDefault("mqtt.homeassistant.enabled", false)
	viper.SetDefault("mqtt.homeassistant.discoveryprefix", "homeassistant")

	viper.SetDefault("frigate.enabled", false)
	viper.SetDefault("frigate.url", "http://localhost:5000")
	viper.SetDefault("frigate.topic", "frigate/events")
	viper.SetDefault("frigate.cameras", []string{})
	viper.SetDefault("frigate.processonsnapshot", false)
	viper.SetDefault("frigate.maxworkers", 4)
	viper.SetDefault("frigate.downloadclips", true)
	viper.SetDefault("frigate.clipdelay", 30*time.Second)
	viper.SetDefault("frigate.requesttimeout", 15*time.Second)

	viper.SetDefault("notification.enabled", false)
	viper.SetDefault("notification.urls", []string{})
	viper.SetDefault("notification.ratelimit", time.Minute)
	viper.SetDefault("notification.burst", 3)
	viper.SetDefault("notification.script.command", "")
	viper.SetDefault("notification.script.args", []string{})
	viper.SetDefault("notification.script.inputformat", "env")
	viper.SetDefault("notification.script.timeout", 30*time.Second)

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.listen", ":8080")
	viper.SetDefault("webserver.baseurl", "")
	viper.SetDefault("webserver.auth.enabled", false)
	viper.SetDefault("webserver.auth.username", "admin")
	viper.SetDefault("webserver.auth.passwordhash", "")

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.dsn", "")

	viper.SetDefault("logging.defaultlevel", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.fileoutput.enabled", true)
	viper.SetDefault("logging.fileoutput.path", "logs/birdview.log")
	viper.SetDefault("logging.fileoutput.level", "info")
	viper.SetDefault("logging.fileoutput.maxsize", 50)
	viper.SetDefault("logging.fileoutput.maxage", 30)
	viper.SetDefault("logging.fileoutput.maxbackups", 5)
	viper.SetDefault("logging.fileoutput.compress", false)
}
