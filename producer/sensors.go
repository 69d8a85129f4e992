package producer

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ftahirops/dxagent/model"
)

var sensorDescriptors = map[string]model.Metric{
	"temp_c": {Name: "temp_c", OwnerClass: "sensors", Type: model.TypeFloat, Unit: "celsius"},
}

// SensorsProducer reads /sys/class/thermal/thermal_zone*/temp and
// /sys/class/hwmon/hwmon*/temp*_input, writing one scope per zone under
// sensors/thermal/<zone> and sensors/hwmon/<chip>/<input>.
type SensorsProducer struct{}

func (p *SensorsProducer) Name() string { return "sensors" }

func (p *SensorsProducer) Collect(store *model.Store) error {
	p.collectThermalZones(store)
	p.collectHwmon(store)
	return nil
}

func (p *SensorsProducer) collectThermalZones(store *model.Store) {
	zones, err := filepath.Glob("/sys/class/thermal/thermal_zone*")
	if err != nil {
		return
	}
	for _, zoneDir := range zones {
		name := filepath.Base(zoneDir)
		v, ok := readMilliCelsius(filepath.Join(zoneDir, "temp"))
		if !ok {
			continue
		}
		dict := store.Ensure("sensors/thermal/"+name, []string{"temp_c"}, sensorDescriptors)
		dict["temp_c"].Append(v)
	}
}

func (p *SensorsProducer) collectHwmon(store *model.Store) {
	chips, err := filepath.Glob("/sys/class/hwmon/hwmon*")
	if err != nil {
		return
	}
	for _, chipDir := range chips {
		inputs, err := filepath.Glob(filepath.Join(chipDir, "temp*_input"))
		if err != nil {
			continue
		}
		chip := filepath.Base(chipDir)
		for _, input := range inputs {
			v, ok := readMilliCelsius(input)
			if !ok {
				continue
			}
			label := strings.TrimSuffix(filepath.Base(input), "_input")
			dict := store.Ensure("sensors/hwmon/"+chip+"/"+label, []string{"temp_c"}, sensorDescriptors)
			dict["temp_c"].Append(v)
		}
	}
}

func readMilliCelsius(path string) (float64, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	milli, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}
	return float64(milli) / 1000.0, true
}

func (p *SensorsProducer) Exit() error { return nil }
