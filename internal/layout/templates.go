package layout

// 手工编排的响应式模板。坐标基于 12 列（lg）/ 8 列（md）/ 4 列（sm）
// 网格，只读数据，运行期不修改。

var templates = []Template{
	{
		Name:       "spot-classic",
		Mode:       ModeSpot,
		PanelCount: 5,
		Grids: map[Breakpoint][]Slot{
			BreakLG: {
				{X: 0, Y: 0, W: 6, H: 12, Role: RoleMain},
				{X: 9, Y: 0, W: 3, H: 12, Role: RoleOrderForm},
				{X: 6, Y: 0, W: 3, H: 12, Role: RoleSecondary},
				{X: 0, Y: 12, W: 6, H: 6, Role: RoleBottom},
				{X: 6, Y: 12, W: 6, H: 6, Role: RoleBottom},
			},
			BreakMD: {
				{X: 0, Y: 0, W: 5, H: 10, Role: RoleMain},
				{X: 5, Y: 0, W: 3, H: 10, Role: RoleOrderForm},
				{X: 0, Y: 10, W: 4, H: 8, Role: RoleSecondary},
				{X: 4, Y: 10, W: 4, H: 8, Role: RoleBottom},
				{X: 0, Y: 18, W: 8, H: 6, Role: RoleBottom},
			},
			BreakSM: {
				{X: 0, Y: 0, W: 4, H: 8, Role: RoleMain},
				{X: 0, Y: 8, W: 4, H: 8, Role: RoleOrderForm},
				{X: 0, Y: 16, W: 4, H: 6, Role: RoleSecondary},
				{X: 0, Y: 22, W: 4, H: 6, Role: RoleBottom},
				{X: 0, Y: 28, W: 4, H: 6, Role: RoleBottom},
			},
		},
	},
	{
		Name:       "spot-form-left",
		Mode:       ModeSpot,
		PanelCount: 5,
		Grids: map[Breakpoint][]Slot{
			BreakLG: {
				{X: 0, Y: 0, W: 3, H: 12, Role: RoleOrderForm},
				{X: 3, Y: 0, W: 6, H: 12, Role: RoleMain},
				{X: 9, Y: 0, W: 3, H: 12, Role: RoleSecondary},
				{X: 0, Y: 12, W: 6, H: 6, Role: RoleBottom},
				{X: 6, Y: 12, W: 6, H: 6, Role: RoleBottom},
			},
			BreakMD: {
				{X: 0, Y: 0, W: 3, H: 10, Role: RoleOrderForm},
				{X: 3, Y: 0, W: 5, H: 10, Role: RoleMain},
				{X: 0, Y: 10, W: 4, H: 8, Role: RoleSecondary},
				{X: 4, Y: 10, W: 4, H: 8, Role: RoleBottom},
				{X: 0, Y: 18, W: 8, H: 6, Role: RoleBottom},
			},
			BreakSM: {
				{X: 0, Y: 0, W: 4, H: 8, Role: RoleOrderForm},
				{X: 0, Y: 8, W: 4, H: 8, Role: RoleMain},
				{X: 0, Y: 16, W: 4, H: 6, Role: RoleSecondary},
				{X: 0, Y: 22, W: 4, H: 6, Role: RoleBottom},
				{X: 0, Y: 28, W: 4, H: 6, Role: RoleBottom},
			},
		},
	},
	{
		Name:       "spot-wide-chart",
		Mode:       ModeSpot,
		PanelCount: 4,
		Grids: map[Breakpoint][]Slot{
			BreakLG: {
				{X: 0, Y: 0, W: 9, H: 12, Role: RoleMain},
				{X: 9, Y: 0, W: 3, H: 12, Role: RoleOrderForm},
				{X: 0, Y: 12, W: 6, H: 6, Role: RoleSecondary},
				{X: 6, Y: 12, W: 6, H: 6, Role: RoleBottom},
			},
			BreakMD: {
				{X: 0, Y: 0, W: 8, H: 10, Role: RoleMain},
				{X: 0, Y: 10, W: 4, H: 8, Role: RoleOrderForm},
				{X: 4, Y: 10, W: 4, H: 8, Role: RoleSecondary},
				{X: 0, Y: 18, W: 8, H: 6, Role: RoleBottom},
			},
			BreakSM: {
				{X: 0, Y: 0, W: 4, H: 8, Role: RoleMain},
				{X: 0, Y: 8, W: 4, H: 8, Role: RoleOrderForm},
				{X: 0, Y: 16, W: 4, H: 6, Role: RoleSecondary},
				{X: 0, Y: 22, W: 4, H: 6, Role: RoleBottom},
			},
		},
	},
	{
		Name:       "futures-pro",
		Mode:       ModeFutures,
		PanelCount: 6,
		Grids: map[Breakpoint][]Slot{
			BreakLG: {
				{X: 0, Y: 0, W: 6, H: 12, Role: RoleMain},
				{X: 9, Y: 0, W: 3, H: 12, Role: RoleOrderForm},
				{X: 6, Y: 0, W: 3, H: 6, Role: RoleSecondary},
				{X: 6, Y: 6, W: 3, H: 6, Role: RoleSecondary},
				{X: 0, Y: 12, W: 8, H: 6, Role: RoleBottom},
				{X: 8, Y: 12, W: 4, H: 6, Role: RoleBottom},
			},
			BreakMD: {
				{X: 0, Y: 0, W: 5, H: 10, Role: RoleMain},
				{X: 5, Y: 0, W: 3, H: 10, Role: RoleOrderForm},
				{X: 0, Y: 10, W: 4, H: 6, Role: RoleSecondary},
				{X: 4, Y: 10, W: 4, H: 6, Role: RoleSecondary},
				{X: 0, Y: 16, W: 8, H: 6, Role: RoleBottom},
				{X: 0, Y: 22, W: 8, H: 6, Role: RoleBottom},
			},
			BreakSM: {
				{X: 0, Y: 0, W: 4, H: 8, Role: RoleMain},
				{X: 0, Y: 8, W: 4, H: 8, Role: RoleOrderForm},
				{X: 0, Y: 16, W: 4, H: 5, Role: RoleSecondary},
				{X: 0, Y: 21, W: 4, H: 5, Role: RoleSecondary},
				{X: 0, Y: 26, W: 4, H: 5, Role: RoleBottom},
				{X: 0, Y: 31, W: 4, H: 5, Role: RoleBottom},
			},
		},
	},
	{
		Name:       "futures-split",
		Mode:       ModeFutures,
		PanelCount: 6,
		Grids: map[Breakpoint][]Slot{
			BreakLG: {
				{X: 0, Y: 0, W: 3, H: 12, Role: RoleOrderForm},
				{X: 3, Y: 0, W: 6, H: 12, Role: RoleMain},
				{X: 9, Y: 0, W: 3, H: 6, Role: RoleSecondary},
				{X: 9, Y: 6, W: 3, H: 6, Role: RoleSecondary},
				{X: 0, Y: 12, W: 6, H: 6, Role: RoleBottom},
				{X: 6, Y: 12, W: 6, H: 6, Role: RoleBottom},
			},
			BreakMD: {
				{X: 0, Y: 0, W: 3, H: 10, Role: RoleOrderForm},
				{X: 3, Y: 0, W: 5, H: 10, Role: RoleMain},
				{X: 0, Y: 10, W: 4, H: 6, Role: RoleSecondary},
				{X: 4, Y: 10, W: 4, H: 6, Role: RoleSecondary},
				{X: 0, Y: 16, W: 8, H: 6, Role: RoleBottom},
				{X: 0, Y: 22, W: 8, H: 6, Role: RoleBottom},
			},
			BreakSM: {
				{X: 0, Y: 0, W: 4, H: 8, Role: RoleOrderForm},
				{X: 0, Y: 8, W: 4, H: 8, Role: RoleMain},
				{X: 0, Y: 16, W: 4, H: 5, Role: RoleSecondary},
				{X: 0, Y: 21, W: 4, H: 5, Role: RoleSecondary},
				{X: 0, Y: 26, W: 4, H: 5, Role: RoleBottom},
				{X: 0, Y: 31, W: 4, H: 5, Role: RoleBottom},
			},
		},
	},
}
