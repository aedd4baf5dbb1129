package layout

import "sort"

// Mode 交易模式，模板按模式区分。
type Mode string

const (
	ModeSpot    Mode = "spot"
	ModeFutures Mode = "futures"
)

// Role 面板角色。注册面板时显式声明，不从面板名称推断。
type Role string

const (
	RoleMain      Role = "main"      // 图表
	RoleOrderForm Role = "orderform" // 下单表单
	RoleSecondary Role = "secondary" // 盘口/深度
	RoleBottom    Role = "bottom"    // 其余（资产、历史等）
)

// rolePriority 分配优先级：orderform > main > secondary > bottom。
var rolePriority = map[Role]int{
	RoleOrderForm: 0,
	RoleMain:      1,
	RoleSecondary: 2,
	RoleBottom:    3,
}

// Breakpoint 响应式断点。
type Breakpoint string

const (
	BreakLG Breakpoint = "lg"
	BreakMD Breakpoint = "md"
	BreakSM Breakpoint = "sm"
)

// Breakpoints 全部断点，固定顺序。
var Breakpoints = []Breakpoint{BreakLG, BreakMD, BreakSM}

// Slot 模板中的一个网格槽位。
type Slot struct {
	X, Y, W, H int
	Role       Role
}

// Template 手工编排的网格模板，按模式与面板数量配套。
type Template struct {
	Name       string
	Mode       Mode
	PanelCount int
	Grids      map[Breakpoint][]Slot
}

// Panel 已注册的面板。
type Panel struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// Placement 面板在某断点下的最终位置。
type Placement struct {
	PanelID string `json:"panel_id"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	W       int    `json:"w"`
	H       int    `json:"h"`
}

// Layout 按断点的完整布局。
type Layout map[Breakpoint][]Placement

// fallbackSlot 角色无法匹配任何槽位时的固定兜底坐标。
var fallbackSlot = Slot{X: 0, Y: 18, W: 4, H: 6}

// TemplatesFor 选出候选模板：优先同模式同数量；该数量下没有本模式的
// 模板时退回任意模式；仍为空则退回全部模板。
func TemplatesFor(mode Mode, count int) []Template {
	var exact, anyMode []Template
	for _, t := range templates {
		if t.PanelCount == count {
			anyMode = append(anyMode, t)
			if t.Mode == mode {
				exact = append(exact, t)
			}
		}
	}
	if len(exact) > 0 {
		return exact
	}
	if len(anyMode) > 0 {
		return anyMode
	}
	return append([]Template(nil), templates...)
}

// Optimize 为一组面板选择模板并分配槽位。相同的面板集合、模式与
// 模板序号总是得到相同的布局；templateIndex 按候选数取模，循环切换
// N 个模板后回到原布局。
func Optimize(panels []Panel, mode Mode, templateIndex int) (Layout, string) {
	candidates := TemplatesFor(mode, len(panels))
	if templateIndex < 0 {
		templateIndex = 0
	}
	tpl := candidates[templateIndex%len(candidates)]
	return assign(panels, tpl), tpl.Name
}

// assign 按优先级逐面板占用同角色的第一个空闲槽位；
// 无可用槽位的面板落到固定兜底坐标。
func assign(panels []Panel, tpl Template) Layout {
	ordered := append([]Panel(nil), panels...)
	sort.SliceStable(ordered, func(i, j int) bool {
		pi, pj := rolePriority[ordered[i].Role], rolePriority[ordered[j].Role]
		if pi != pj {
			return pi < pj
		}
		return ordered[i].ID < ordered[j].ID
	})

	out := make(Layout, len(tpl.Grids))
	for _, bp := range Breakpoints {
		slots := tpl.Grids[bp]
		used := make([]bool, len(slots))
		placements := make([]Placement, 0, len(ordered))
		for _, p := range ordered {
			slot := fallbackSlot
			for i, s := range slots {
				if !used[i] && s.Role == p.Role {
					used[i] = true
					slot = s
					break
				}
			}
			placements = append(placements, Placement{
				PanelID: p.ID,
				X:       slot.X, Y: slot.Y, W: slot.W, H: slot.H,
			})
		}
		out[bp] = placements
	}
	return out
}

// TemplateCount 某模式与面板数量下的候选模板数（切换循环用）。
func TemplateCount(mode Mode, count int) int {
	return len(TemplatesFor(mode, count))
}
