package vehicle

// 几何与感知常量（米、秒）
const (
	LateralWindow    = 2.2  // 判定前车时允许的横向偏移
	LookAhead        = 40.  // 前车搜索距离
	HeadOnRange      = 25.  // 对向来车的感知距离
	HeadOnLateral    = 4.   // 对向来车的横向感知范围
	KeepRightOffset  = 1.75 // 会车时向右让出的横向距离
	LateralSlideRate = 1.   // 横向让行的平移速度（米/秒）

	ParkSnapDistance    = 2.  // 距车位中心小于该值时吸附并停稳
	ExitAisleDistance   = 1.  // 倒车出库到达通道点的判定距离
	EntryWindowBefore   = 3.  // 入口前方的转弯判定范围
	EntryWindowAfter    = 10. // 入口后方的转弯判定范围
	MissedTurnOvershoot = 50. // 驶过入口超过该距离视为错过入口

	ParkingSpeed     = 1.5 // 驶入车位的基准速度
	ReverseSpeed     = 1.  // 倒车基准速度
	LegacyDesiredGap = 3.  // 比例油门的期望间距
	LegacyFloor      = 0.2 // 比例油门的下限比例
)

// Creep 低速爬行相关的可调参数
// 说明：负间距与紧急区内的爬行速度是防止永久锁死的经验取值，不是物理推导结果
type Creep struct {
	Base          float64 // 基准爬行速度（米/秒）
	Overlap       float64 // 间距为负时的爬行比例
	EmergencyZone float64 // 紧急区上界（米），[0, EmergencyZone)内按比例爬行
	EmergencyMin  float64 // 紧急区下界处的爬行比例
	EmergencyMax  float64 // 紧急区上界处的爬行比例
	StuckLow      float64 // 卡滞10秒后的爬行比例
	StuckHigh     float64 // 卡滞15秒后的爬行比例
	MergeWait     float64 // 等待汇入时的爬行比例
}

// Params 车辆管理器参数
type Params struct {
	Length float64 // 车长
	Width  float64 // 车宽

	Creep Creep

	NudgeRatio          float64 // 每步按重叠量的该比例分离车辆
	EmergencyDecel      float64 // 紧急制动减速度（正值）
	MaxConcurrentMerges int     // 同时处于MERGING的车辆上限
	MergeTimeout        float64 // 等待汇入超过该时间后放宽判定
	LaneChangeDuration  float64 // 变道持续时间
	MergeDuration       float64 // 汇入持续时间
}

// DefaultParams 默认参数
func DefaultParams() Params {
	return Params{
		Length: 4.5,
		Width:  2.0,
		Creep: Creep{
			Base:          1.0,
			Overlap:       0.1,
			EmergencyZone: 0.5,
			EmergencyMin:  0.1,
			EmergencyMax:  0.2,
			StuckLow:      0.3,
			StuckHigh:     0.5,
			MergeWait:     0.3,
		},
		NudgeRatio:          0.05,
		EmergencyDecel:      6,
		MaxConcurrentMerges: 5,
		MergeTimeout:        5,
		LaneChangeDuration:  2,
		MergeDuration:       2.5,
	}
}

// OverlapDistance 车辆中心距小于该值视为重叠
func (p Params) OverlapDistance() float64 {
	return (p.Length + p.Width) / 2
}
