package app_config

import (
	"io/ioutil"
	"log"

	"gopkg.in/yaml.v2"
)

// This is the app config for the feed client core and the api server wrapping
// it.
type ClientAppConfig struct {
	// Page size used by every feed fetch, bounded to [1, 100].
	PAGE_SIZE int `yaml:"PAGE_SIZE"`
	// Timeout applied to each network-backed operation, in seconds.
	NETWORK_TIMEOUT_SECOND int64 `yaml:"NETWORK_TIMEOUT_SECOND"`
	// Path to the forbidden term list (a YAML string list). Swapping the file
	// is how locale-specific lists are deployed.
	FORBIDDEN_TERMS_PATH string `yaml:"FORBIDDEN_TERMS_PATH"`
	// Enable the stricter Japanese matching that discounts terms embedded in
	// kanji compounds. Off by default to keep the shipped behavior.
	KANA_BOUNDARY_HEURISTIC bool `yaml:"KANA_BOUNDARY_HEURISTIC"`
}

func ParseClientAppConfig(path string) ClientAppConfig {
	c := ClientAppConfig{}
	yamlFile, err := ioutil.ReadFile(path)
	if err != nil {
		log.Fatal("yamlFile. get err: ", err.Error())
	}
	err = yaml.Unmarshal(yamlFile, &c)
	if err != nil {
		log.Fatal("Unmarshal: ", err)
	}
	return c
}

// ParseForbiddenTerms reads the term list file: a YAML list of strings in the
// order the product team maintains them.
func ParseForbiddenTerms(path string) []string {
	var terms []string
	yamlFile, err := ioutil.ReadFile(path)
	if err != nil {
		log.Fatal("yamlFile. get err: ", err.Error())
	}
	err = yaml.Unmarshal(yamlFile, &terms)
	if err != nil {
		log.Fatal("Unmarshal: ", err)
	}
	return terms
}
