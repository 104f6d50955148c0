package netlink

// Kernel wire constants for the route and generic netlink families.
//
// golang.org/x/sys/unix exports the base RTM_*/NLM_F_*/AF_* constants used
// by the socket layer (see socket.go), but does not carry the full set of
// rtattr type numbers this package needs (IFLA_VXLAN_*, NDA_*, the bridge
// IFLA_INFO_DATA sub-attributes, ...). Those are defined here directly from
// the kernel UAPI headers (linux/if_link.h, linux/neighbour.h, linux/rtnetlink.h)
// so this package is self-contained and the numbering is bit-exact regardless
// of which constants a given x/sys/unix build happens to export.
const (
	nlmsgHdrLen = 16
	nlmsgAlignTo = 4

	nlmsgError = 2
	nlmsgDone  = 3
	nlmsgNoop  = 1

	nlmFRequest = 0x1
	nlmFMulti   = 0x2
	nlmFAck     = 0x4
	nlmFExcl    = 0x200
	nlmFCreate  = 0x400
	nlmFAppend  = 0x800
	nlmFReplace = 0x100

	nlmFRoot  = 0x100
	nlmFMatch = 0x200
	nlmFDump  = nlmFRoot | nlmFMatch
)

// Link message types.
const (
	rtmNewLink = 16
	rtmDelLink = 17
	rtmGetLink = 18
	rtmSetLink = 19

	rtmNewAddr = 20
	rtmDelAddr = 21
	rtmGetAddr = 22

	rtmNewRoute = 24
	rtmDelRoute = 25
	rtmGetRoute = 26

	rtmNewNeigh = 28
	rtmDelNeigh = 29
	rtmGetNeigh = 30
)

// ifinfomsg (LinkMsg) attribute types (IFLA_*).
const (
	iflaUnspec       = 0
	iflaAddress      = 1
	iflaBroadcast    = 2
	iflaIfname       = 3
	iflaMtu          = 4
	iflaLink         = 5
	iflaTxqlen       = 13
	iflaOperstate    = 16
	iflaLinkinfo     = 18
	iflaNetNsPid     = 19
	iflaMaster       = 10
	iflaAfSpec       = 26
	iflaGroup        = 27
	iflaNetNsFd      = 28
	iflaPromiscuity  = 30
	iflaNumTxQueues  = 31
	iflaNumRxQueues  = 32
)

// IFLA_LINKINFO sub-attributes.
const (
	iflaInfoKind = 1
	iflaInfoData = 2
)

// IFLA_VXLAN_* sub-attributes (nested inside IFLA_INFO_DATA for kind "vxlan").
const (
	iflaVxlanID              = 1
	iflaVxlanGroup           = 2
	iflaVxlanLink            = 3
	iflaVxlanLocal           = 4
	iflaVxlanTTL             = 5
	iflaVxlanTOS             = 6
	iflaVxlanLearning        = 7
	iflaVxlanAgeing          = 8
	iflaVxlanLimit           = 9
	iflaVxlanPortRange       = 10
	iflaVxlanProxy           = 11
	iflaVxlanRSC             = 12
	iflaVxlanL2miss          = 13
	iflaVxlanL3miss          = 14
	iflaVxlanPort            = 15
	iflaVxlanGroup6          = 16
	iflaVxlanLocal6          = 17
	iflaVxlanUDPCsum         = 18
	iflaVxlanUDPZeroCsum6Tx  = 19
	iflaVxlanUDPZeroCsum6Rx  = 20
	iflaVxlanGBP             = 23
	iflaVxlanFlowbased       = 30
)

// Bridge IFLA_INFO_DATA sub-attributes.
const (
	iflaBrHelloTime       = 0x2
	iflaBrAgeingTime      = 0x4
	iflaBrVlanFiltering   = 0x7
	iflaBrMcastSnooping   = 0x17
)

// Veth IFLA_INFO_DATA sub-attribute: a nested peer ifinfomsg + attrs.
const (
	vethInfoPeer = 1
)

// ifaddrmsg (AddrMsg) attribute types (IFA_*).
const (
	ifaUnspec    = 0
	ifaAddress   = 1
	ifaLocal     = 2
	ifaLabel     = 3
	ifaBroadcast = 4
)

// rtmsg (RouteMsg) attribute types (RTA_*).
const (
	rtaUnspec  = 0
	rtaDst     = 1
	rtaOif     = 4
	rtaGateway = 5
	rtaPrefsrc = 7
	rtaMtu     = 8
	rtaVia     = 18
)

// Route tables, protocols, scopes, types (rtm_table / rtm_protocol / rtm_scope / rtm_type).
const (
	rtTableMain = 254

	rtprotBoot = 3

	rtScopeUniverse = 0
	rtScopeLink     = 253
	rtScopeNowhere  = 255

	rtnUnicast = 1

	rtmFLookupTable = 0x1000

	// rtnhFOnlink marks a nexthop as reachable without needing an
	// onward route lookup on its own (the peer is treated as directly
	// attached even though there is no matching connected-route prefix
	// for it on this link).
	rtnhFOnlink = 0x4
)

// ndmsg (NeighMsg) attribute types (NDA_*) and states/flags.
const (
	ndaUnspec = 0
	ndaDst    = 1
	ndaLladdr = 2

	nudPermanent = 0x80

	ntfSelf = 0x02

	rtnUnspecNeigh = 0
)

// Address families.
const (
	afUnspec = 0
	afInet   = 2
	afInet6  = 10
	afBridge = 7
	afNetlink = 16
)

// Generic netlink controller family.
const (
	genlIDCtrl = 0x10

	genlCtrlCmdGetfamily = 3

	genlCtrlAttrFamilyID   = 1
	genlCtrlAttrFamilyName = 2

	genlCtrlVersion = 1
)

// NLA_F_NESTED marks an attribute whose value is itself a sequence of
// attributes (§3 DATA MODEL: "a parent's value is itself a sequence of
// attributes").
const nlaFNested = 0x8000

// Exported address family constants for callers outside this package
// building Neighbor/Route values (e.g. the datapath programmer choosing
// AF_BRIDGE for an FDB entry vs AF_INET for an ARP entry).
const (
	AFInet   = afInet
	AFInet6  = afInet6
	AFBridge = afBridge
)
