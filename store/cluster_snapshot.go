package store

import (
	"encoding/json"

	"github.com/mnemograph/mnemograph/engine/cluster"
)

func encodeClusters(clusters []cluster.Cluster) ([]byte, error) {
	return json.Marshal(clusters)
}

func decodeClusters(payload []byte) ([]cluster.Cluster, error) {
	var clusters []cluster.Cluster
	if err := json.Unmarshal(payload, &clusters); err != nil {
		return nil, err
	}
	return clusters, nil
}
