package domain

// SelectorType distinguishes the two disjoint selector enums: facts observed
// about an Agent's node versus facts observed about a workload.
type SelectorType string

const (
	SelectorTypeNode     SelectorType = "node"
	SelectorTypeWorkload SelectorType = "workload"
)

// IsValid returns true if the selector type is a recognized value.
func (t SelectorType) IsValid() bool {
	return t == SelectorTypeNode || t == SelectorTypeWorkload
}

// String returns the string representation of the selector type.
func (t SelectorType) String() string {
	return string(t)
}

// NodeSelectorKey is one of the closed enum of node-selector types produced
// by the PSAT node attestor.
type NodeSelectorKey string

const (
	NodeSelectorCluster             NodeSelectorKey = "CLUSTER"
	NodeSelectorAgentNamespace      NodeSelectorKey = "AGENTNAMESPACE"
	NodeSelectorAgentServiceAccount NodeSelectorKey = "AGENTSERVICEACCOUNT"
	NodeSelectorAgentPodName        NodeSelectorKey = "AGENTPODNAME"
	NodeSelectorAgentPodUID         NodeSelectorKey = "AGENTPODUID"
	NodeSelectorAgentNodeIP         NodeSelectorKey = "AGENTNODEIP"
	NodeSelectorAgentNodeName       NodeSelectorKey = "AGENTNODENAME"
	NodeSelectorAgentNodeUID        NodeSelectorKey = "AGENTNODEUID"
	NodeSelectorAgentNodeLabels     NodeSelectorKey = "AGENTNODELABELS"
	NodeSelectorAgentPodLabels      NodeSelectorKey = "AGENTPODLABELS"
)

// IsValid reports whether k is one of the closed set of node selector keys.
func (k NodeSelectorKey) IsValid() bool {
	switch k {
	case NodeSelectorCluster, NodeSelectorAgentNamespace, NodeSelectorAgentServiceAccount,
		NodeSelectorAgentPodName, NodeSelectorAgentPodUID, NodeSelectorAgentNodeIP,
		NodeSelectorAgentNodeName, NodeSelectorAgentNodeUID, NodeSelectorAgentNodeLabels,
		NodeSelectorAgentPodLabels:
		return true
	}
	return false
}

// WorkloadSelectorKey is one of the closed enum of workload-selector types
// produced by the K8s workload attestor.
type WorkloadSelectorKey string

const (
	WorkloadSelectorNamespace         WorkloadSelectorKey = "NAMESPACE"
	WorkloadSelectorServiceAccount    WorkloadSelectorKey = "SERVICEACCOUNT"
	WorkloadSelectorPodName           WorkloadSelectorKey = "PODNAME"
	WorkloadSelectorPodUID            WorkloadSelectorKey = "PODUID"
	WorkloadSelectorNodeName          WorkloadSelectorKey = "NODENAME"
	WorkloadSelectorPodLabels         WorkloadSelectorKey = "PODLABELS"
	WorkloadSelectorContainerName     WorkloadSelectorKey = "CONTAINERNAME"
	WorkloadSelectorContainerImage    WorkloadSelectorKey = "CONTAINERIMAGE"
	WorkloadSelectorContainerImageID  WorkloadSelectorKey = "CONTAINERIMAGEID"
	WorkloadSelectorPodOwners         WorkloadSelectorKey = "PODOWNERS"
	WorkloadSelectorPodOwnerUIDs      WorkloadSelectorKey = "PODOWNERUIDS"
	WorkloadSelectorPodImages         WorkloadSelectorKey = "PODIMAGES"
	WorkloadSelectorPodImageCount     WorkloadSelectorKey = "PODIMAGECOUNT"
	WorkloadSelectorPodInitImages     WorkloadSelectorKey = "PODINITIMAGES"
	WorkloadSelectorPodInitImageCount WorkloadSelectorKey = "PODINITIMAGECOUNT"
)

// IsValid reports whether k is one of the closed set of workload selector keys.
func (k WorkloadSelectorKey) IsValid() bool {
	switch k {
	case WorkloadSelectorNamespace, WorkloadSelectorServiceAccount, WorkloadSelectorPodName,
		WorkloadSelectorPodUID, WorkloadSelectorNodeName, WorkloadSelectorPodLabels,
		WorkloadSelectorContainerName, WorkloadSelectorContainerImage, WorkloadSelectorContainerImageID,
		WorkloadSelectorPodOwners, WorkloadSelectorPodOwnerUIDs, WorkloadSelectorPodImages,
		WorkloadSelectorPodImageCount, WorkloadSelectorPodInitImages, WorkloadSelectorPodInitImageCount:
		return true
	}
	return false
}
