package params

import (
	"io/ioutil"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// LoadConfigFile loads a yaml config file on top of the mainnet defaults
// and applies the result as the active coordinator config.
func LoadConfigFile(path string) error {
	yamlFile, err := ioutil.ReadFile(path) // #nosec G304
	if err != nil {
		return errors.Wrap(err, "could not read config file")
	}
	conf := MainnetConfig()
	if err := yaml.UnmarshalStrict(yamlFile, conf); err != nil {
		if _, ok := err.(*yaml.TypeError); !ok {
			return errors.Wrap(err, "could not parse config yaml")
		}
		log.WithError(err).Error("There were some issues parsing the config from a yaml file")
	}
	log.Debugf("Config file values: %+v", conf)
	OverrideCoordinatorConfig(conf)
	return nil
}
