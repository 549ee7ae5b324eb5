package workflow

import (
	"encoding/json"
	"strings"
)

// StepKind 步骤类型
type StepKind string

const (
	StepKindStart    StepKind = "start"    // 起始步骤
	StepKindTask     StepKind = "task"     // 任务步骤
	StepKindApproval StepKind = "approval" // 审批步骤
	StepKindEnd      StepKind = "end"      // 结束步骤
)

// AssignmentType 步骤指派方式
type AssignmentType string

const (
	AssignByRole AssignmentType = "role" // 按角色指派,角色下任意用户可处理
	AssignByUser AssignmentType = "user" // 指派到具体用户
	AssignByAuto AssignmentType = "auto" // 按负载自动选择用户
)

// 流转动作词汇表,可扩展
const (
	ActionSubmit   = "submit"
	ActionApprove  = "approve"
	ActionReject   = "reject"
	ActionComplete = "complete"
	ActionVeto     = "veto"
	ActionCancel   = "cancel"
	ActionEscalate = "escalate"
)

// Step 工作流步骤定义
type Step struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Kind           StepKind       `json:"kind"`
	AssignmentType AssignmentType `json:"assignment_type"`
	AssignedRole   string         `json:"assigned_role,omitempty"`
	AssignedUser   string         `json:"assigned_user,omitempty"`
	Deadline       string         `json:"deadline,omitempty"` // 时长字符串: <N>[h|d|w]
}

// Transition 流转边: (from, action) -> to
type Transition struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Action string `json:"action"`
}

// Condition 条件路由规则,命中时覆盖流转边的静态目标
type Condition struct {
	StepID   string      `json:"step_id"`
	Field    string      `json:"field"`
	Operator string      `json:"operator"` // =, !=, >, <, >=, <=, in, not_in
	Value    interface{} `json:"value"`
	NextStep string      `json:"next_step"`
}

// Graph 工作流定义的图结构,序列化存储在定义记录的 data 字段中
type Graph struct {
	Steps       []Step       `json:"steps"`
	Transitions []Transition `json:"transitions"`
	Conditions  []Condition  `json:"conditions,omitempty"`
	VetoRoles   []string     `json:"veto_roles,omitempty"`
}

// Definition 工作流定义,按版本不可变
type Definition struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	EntityType EntityType `json:"entity_type"`
	IsActive   bool       `json:"is_active"`
	Graph
}

// ParseGraph 解析序列化的图结构
func ParseGraph(data []byte) (*Graph, error) {
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, ErrValidation("invalid workflow graph: %v", err)
	}
	return &g, nil
}

// Validate 校验工作流定义
// 要求恰好一个 start 步骤、至少一个 end 步骤,且所有流转边和条件引用已知步骤
func (d *Definition) Validate() error {
	if d.Name == "" {
		return ErrValidation("definition name is required")
	}
	if !d.EntityType.Valid() {
		return ErrValidation("unknown entity type: %s", d.EntityType)
	}
	if len(d.Steps) == 0 {
		return ErrValidation("definition must contain at least one step")
	}

	steps := make(map[string]bool, len(d.Steps))
	startCount := 0
	endCount := 0
	for _, s := range d.Steps {
		if s.ID == "" {
			return ErrValidation("step ID is required")
		}
		if steps[s.ID] {
			return ErrValidation("duplicate step ID: %s", s.ID)
		}
		steps[s.ID] = true

		switch s.Kind {
		case StepKindStart:
			startCount++
		case StepKindEnd:
			endCount++
		case StepKindTask, StepKindApproval:
		default:
			return ErrValidation("step %s has unknown kind: %s", s.ID, s.Kind)
		}
	}
	if startCount != 1 {
		return ErrValidation("definition must contain exactly one start step, found %d", startCount)
	}
	if endCount == 0 {
		return ErrValidation("definition must contain at least one end step")
	}

	for _, t := range d.Transitions {
		if !steps[t.From] {
			return ErrValidation("transition references unknown step: %s", t.From)
		}
		if !steps[t.To] {
			return ErrValidation("transition references unknown step: %s", t.To)
		}
		if t.Action == "" {
			return ErrValidation("transition %s -> %s has no action", t.From, t.To)
		}
	}

	for _, c := range d.Conditions {
		if !steps[c.StepID] {
			return ErrValidation("condition references unknown step: %s", c.StepID)
		}
		if !steps[c.NextStep] {
			return ErrValidation("condition references unknown next step: %s", c.NextStep)
		}
		if !validOperator(c.Operator) {
			return ErrValidation("condition on step %s has unknown operator: %s", c.StepID, c.Operator)
		}
	}

	return nil
}

// Step 根据 ID 查找步骤,不存在时返回 nil
func (d *Definition) Step(id string) *Step {
	for i := range d.Steps {
		if d.Steps[i].ID == id {
			return &d.Steps[i]
		}
	}
	return nil
}

// StartStep 返回起始步骤,不存在时返回 nil
func (d *Definition) StartStep() *Step {
	for i := range d.Steps {
		if d.Steps[i].Kind == StepKindStart {
			return &d.Steps[i]
		}
	}
	return nil
}

// EndStep 返回结束步骤,不存在时返回 nil
func (d *Definition) EndStep() *Step {
	for i := range d.Steps {
		if d.Steps[i].Kind == StepKindEnd {
			return &d.Steps[i]
		}
	}
	return nil
}

// HasVetoRole 判断给定角色集合中是否存在否决角色(大小写不敏感)
func (d *Definition) HasVetoRole(roles []string) bool {
	for _, vr := range d.VetoRoles {
		for _, r := range roles {
			if strings.EqualFold(vr, r) {
				return true
			}
		}
	}
	return false
}
