package config

import (
	"sync"

	"github.com/sirupsen/logrus"
	"sigs.k8s.io/yaml"

	"report-scheduler/pkg/apis"
	"report-scheduler/pkg/common"
)

var MutexConfig sync.Mutex

// Register makes sure the plugin meta file exists, writing the disabled
// default on first start.
func Register() error {
	if common.FileExists(common.ConfigFilePath()) {
		meta, err := ReadPluginMeta()
		if err != nil {
			return err
		}
		logrus.Infof("[Config] Plugin %s loaded, enabled: %t", meta.ID, meta.Enabled)
		return nil
	}

	return WritePluginMeta(apis.NewPluginMeta(common.PluginID))
}

// ReadPluginMeta returns the stored plugin meta, or the default when nothing
// has been saved yet.
func ReadPluginMeta() (*apis.PluginMeta, error) {
	MutexConfig.Lock()
	defer MutexConfig.Unlock()

	return readPluginMeta()
}

func WritePluginMeta(meta *apis.PluginMeta) error {
	MutexConfig.Lock()
	defer MutexConfig.Unlock()

	return writePluginMeta(meta)
}

// UpdatePluginMeta applies fn to the stored meta and saves the result as one
// step, so concurrent updates do not lose each other's fields.
func UpdatePluginMeta(fn func(meta *apis.PluginMeta)) (*apis.PluginMeta, error) {
	MutexConfig.Lock()
	defer MutexConfig.Unlock()

	meta, err := readPluginMeta()
	if err != nil {
		return nil, err
	}

	fn(meta)
	meta.ID = common.PluginID

	if err = writePluginMeta(meta); err != nil {
		return nil, err
	}
	return meta, nil
}

func readPluginMeta() (*apis.PluginMeta, error) {
	meta := apis.NewPluginMeta(common.PluginID)
	if !common.FileExists(common.ConfigFilePath()) {
		return meta, nil
	}

	content, err := common.ReadFile(common.ConfigFilePath())
	if err != nil {
		return nil, err
	}
	if err = yaml.Unmarshal(content, meta); err != nil {
		return nil, err
	}
	if meta.JSONData == nil {
		meta.JSONData = map[string]interface{}{}
	}

	return meta, nil
}

func writePluginMeta(meta *apis.PluginMeta) error {
	data, err := yaml.Marshal(meta)
	if err != nil {
		return err
	}

	return common.WriteFile(common.ConfigFilePath(), data)
}
