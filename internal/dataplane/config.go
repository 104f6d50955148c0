package dataplane

import "encoding/binary"

// SetNetConfig populates NET_CONFIG_MAP with the cluster and host
// entries the egress/ingress classifiers key off of. Called once by
// the orchestrator after LoadCollection, before traffic is expected to
// flow.
func (c *Collection) SetNetConfig(cluster, host NetworkInfo) error {
	if err := c.NetConfig.Put(netConfigKey(NetConfigCluster), marshalNetworkInfo(cluster)); err != nil {
		return err
	}
	return c.NetConfig.Put(netConfigKey(NetConfigHost), marshalNetworkInfo(host))
}

// SetNodeIPs replaces NODE_MAP's contents with exactly the given set of
// node IPs (host-order uint32, e.g. from ipToUint32).
func (c *Collection) SetNodeIPs(nodeIPs []uint32) error {
	iter := c.NodeMap.Iterate()
	var oldKey uint32
	var oldVal uint8
	var toDelete []uint32
	for iter.Next(&oldKey, &oldVal) {
		toDelete = append(toDelete, oldKey)
	}
	if err := iter.Err(); err != nil {
		return err
	}
	for _, k := range toDelete {
		if err := c.NodeMap.Delete(netConfigKeyU32(k)); err != nil {
			return err
		}
	}

	for _, ip := range nodeIPs {
		if err := c.NodeMap.Put(netConfigKeyU32(ip), []byte{1}); err != nil {
			return err
		}
	}
	return nil
}

func netConfigKey(k uint8) []byte {
	return netConfigKeyU32(uint32(k))
}

func netConfigKeyU32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func marshalNetworkInfo(n NetworkInfo) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b[0:4], n.IP)
	binary.LittleEndian.PutUint32(b[4:8], n.SubnetMask)
	return b
}
