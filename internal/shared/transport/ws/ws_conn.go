package ws

type ReqBody struct {
	Seq  int64  `json:"seq"`
	Name string `json:"name"`
	Msg  any    `json:"msg"`
}

type RespBody struct {
	Seq  int64  `json:"seq"`
	Name string `json:"name"`
	Code int    `json:"code"`
	Msg  any    `json:"msg"`
}

type Heartbeat struct {
	CTime int64 `json:"ctime"`
	STime int64 `json:"stime"`
}

const (
	HeartbeatMsg = "heartbeat"
	// DroppedMsg 出站队列满时丢弃事件，队列腾出后补发一条告知客户端重新拉取快照。
	DroppedMsg = "events.dropped"
)
