package pickup

// TransferEntry is written once per successful deposit. Count is what moved; Remaining is what
// a partial deposit left in the container under the same item id.
type TransferEntry struct {
	Tick      uint64 `json:"tick"`
	SessionID string `json:"session_id"`
	Trigger   string `json:"trigger"`
	Mode      string `json:"mode"`

	ContainerID   uint64 `json:"container_id"`
	ContainerName string `json:"container_name"`

	ItemID    uint64 `json:"item_id"`
	TypeID    int    `json:"type_id"`
	ItemName  string `json:"item_name"`
	RawName   string `json:"raw_name,omitempty"`
	Count     int    `json:"count"`
	Remaining int    `json:"remaining,omitempty"`
	IsBullet  bool   `json:"is_bullet,omitempty"`
}

// PassReport summarises one scan pass, including skipped ones.
type PassReport struct {
	Tick      uint64 `json:"tick"`
	SessionID string `json:"session_id"`
	Trigger   string `json:"trigger"`
	Skipped   string `json:"skipped,omitempty"`

	Refreshed  bool `json:"refreshed,omitempty"`
	CacheLen   int  `json:"cache_len"`
	Scanned    int  `json:"scanned"`
	Excluded   int  `json:"excluded"`
	OutOfRange int  `json:"out_of_range"`
	Pruned     int  `json:"pruned"`
	Processed  int  `json:"processed"`
	Transfers  int  `json:"transfers"`
	Blocked    int  `json:"blocked"`
	Unloaded   int  `json:"unloaded"`
	HostErrors int  `json:"host_errors"`
}

type TransferLogger interface {
	WriteTransfer(e TransferEntry) error
}

type PassLogger interface {
	WritePass(r PassReport) error
}

const (
	TriggerTimer  = "timer"
	TriggerManual = "manual"
	TriggerOpen   = "open"
)

const (
	SkipInactive      = "inactive"
	SkipWorldNotReady = "world_not_ready"
	SkipBaseLevel     = "base_level"
	SkipNoActor       = "no_actor"
)
