package core

// Phase 一个回调周期内的阶段
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseAudioIn  Phase = "audio_in"
	PhaseUpdate   Phase = "update"
	PhaseAudioOut Phase = "audio_out"
	PhaseExit     Phase = "exit"
)

// OutputMode 决定 AudioOut 最终交付什么
type OutputMode string

const (
	// OutputPassthrough 求值整个图，但输出原样交付采集到的输入
	OutputPassthrough OutputMode = "passthrough"
	// OutputGraph 交付图的混音结果
	OutputGraph OutputMode = "graph"
)
