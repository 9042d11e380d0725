package grades

import (
	_ "embed"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed peers.yaml
var peersYAML []byte

var (
	curatedOnce sync.Once
	curated     map[string][]string
)

func curatedPeerLists() map[string][]string {
	curatedOnce.Do(func() {
		curated = make(map[string][]string)
		if err := yaml.Unmarshal(peersYAML, &curated); err != nil {
			panic("grades: embedded peer list is malformed: " + err.Error())
		}
	})
	return curated
}

// CuratedPeers returns the fixed peer list for a sector with the subject
// excluded, or nil for an unknown sector.
func CuratedPeers(sector, subject string) []string {
	list, ok := curatedPeerLists()[sector]
	if !ok {
		return nil
	}
	subject = strings.ToUpper(subject)
	peers := make([]string, 0, len(list))
	for _, sym := range list {
		if sym != subject {
			peers = append(peers, sym)
		}
	}
	return peers
}
