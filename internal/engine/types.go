package engine

import (
	"time"
)

// RequestStatus 审批请求状态
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusInReview  RequestStatus = "in_review"
	RequestStatusApproved  RequestStatus = "approved"
	RequestStatusRejected  RequestStatus = "rejected"
	RequestStatusEscalated RequestStatus = "escalated"
	RequestStatusExpired   RequestStatus = "expired"
	RequestStatusCancelled RequestStatus = "cancelled"
)

// Terminal 判断请求状态是否为终态
func (s RequestStatus) Terminal() bool {
	switch s {
	case RequestStatusApproved, RequestStatusRejected, RequestStatusEscalated,
		RequestStatusExpired, RequestStatusCancelled:
		return true
	}
	return false
}

// StepStatus 审批步骤状态
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusInReview  StepStatus = "in_review"
	StepStatusApproved  StepStatus = "approved"
	StepStatusRejected  StepStatus = "rejected"
	StepStatusEscalated StepStatus = "escalated"
	StepStatusExpired   StepStatus = "expired"
	StepStatusCancelled StepStatus = "cancelled"
)

// Terminal 判断步骤状态是否为终态
func (s StepStatus) Terminal() bool {
	switch s {
	case StepStatusApproved, StepStatusRejected, StepStatusEscalated,
		StepStatusExpired, StepStatusCancelled:
		return true
	}
	return false
}

// DecisionValue 审批人决定
type DecisionValue string

const (
	DecisionPending  DecisionValue = "pending"
	DecisionApproved DecisionValue = "approved"
	DecisionRejected DecisionValue = "rejected"
)

// Valid 校验决定值
func (d DecisionValue) Valid() bool {
	return d == DecisionApproved || d == DecisionRejected
}

// SpendingPeriod 消费限额周期
type SpendingPeriod string

const (
	PeriodPerOrder  SpendingPeriod = "per_order"
	PeriodDaily     SpendingPeriod = "daily"
	PeriodWeekly    SpendingPeriod = "weekly"
	PeriodMonthly   SpendingPeriod = "monthly"
	PeriodQuarterly SpendingPeriod = "quarterly"
	PeriodYearly    SpendingPeriod = "yearly"
)

// Valid 校验周期值
func (p SpendingPeriod) Valid() bool {
	switch p {
	case PeriodPerOrder, PeriodDaily, PeriodWeekly, PeriodMonthly,
		PeriodQuarterly, PeriodYearly:
		return true
	}
	return false
}

// RuleAction 消费规则动作
type RuleAction string

const (
	ActionAllow           RuleAction = "allow"
	ActionWarn            RuleAction = "warn"
	ActionNotify          RuleAction = "notify"
	ActionBlock           RuleAction = "block"
	ActionRequireApproval RuleAction = "require_approval"
	ActionEscalate        RuleAction = "escalate"
)

// Valid 校验动作值
func (a RuleAction) Valid() bool {
	switch a {
	case ActionAllow, ActionWarn, ActionNotify, ActionBlock,
		ActionRequireApproval, ActionEscalate:
		return true
	}
	return false
}

// TriggerType 审批触发条件类型
type TriggerType string

const (
	TriggerAlways               TriggerType = "always"
	TriggerManual               TriggerType = "manual"
	TriggerAmountExceeds        TriggerType = "amount_exceeds"
	TriggerQuantityExceeds      TriggerType = "quantity_exceeds"
	TriggerSpendingLimitExceeds TriggerType = "spending_limit_exceeds"
	TriggerRestrictedProduct    TriggerType = "restricted_product"
	TriggerNewVendor            TriggerType = "new_vendor"
	TriggerNewCustomer          TriggerType = "new_customer"
)

// LimitScope 消费限额作用域
type LimitScope string

const (
	ScopeEmployee   LimitScope = "employee"
	ScopeDepartment LimitScope = "department"
	ScopeCompany    LimitScope = "company"
	ScopeRole       LimitScope = "role"
)

// EntityType 业务实体类型
type EntityType string

const (
	EntityOrder  EntityType = "order"
	EntityQuote  EntityType = "quote"
	EntityReturn EntityType = "return"
	EntityCredit EntityType = "credit"
)

// Valid 校验实体类型
func (e EntityType) Valid() bool {
	switch e {
	case EntityOrder, EntityQuote, EntityReturn, EntityCredit:
		return true
	}
	return false
}

// TransactionType 消费流水类型
type TransactionType string

const (
	TransactionSpend      TransactionType = "spend"
	TransactionRefund     TransactionType = "refund"
	TransactionAdjustment TransactionType = "adjustment"
)

// Valid 校验流水类型
func (t TransactionType) Valid() bool {
	return t == TransactionSpend || t == TransactionRefund || t == TransactionAdjustment
}

// Submission 待审批实体提交
// 由订单/报价等外部子系统提供金额、身份和布尔谓词
type Submission struct {
	EntityID    string     `json:"entity_id"`
	EntityType  EntityType `json:"entity_type"`
	CompanyID   string     `json:"company_id"`
	RequesterID string     `json:"requester_id"`

	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Quantity int     `json:"quantity"`

	DepartmentID string   `json:"department_id"`
	Role         string   `json:"role"`
	CategoryIDs  []string `json:"category_ids"`
	ProductIDs   []string `json:"product_ids"`

	// 调用方提供的布尔谓词
	RestrictedProduct bool `json:"restricted_product"`
	NewVendor         bool `json:"new_vendor"`
	NewCustomer       bool `json:"new_customer"`
	ManualApproval    bool `json:"manual_approval"`

	// 由限额追踪器在提交时计算
	SpendingLimitExceeded bool `json:"spending_limit_exceeded"`

	// 可选: 显式指定工作流
	WorkflowID string `json:"workflow_id"`

	// 可选: 请求级截止时间,过期后整个请求终结为 expired
	DueAt *time.Time `json:"due_at,omitempty"`

	// 最终决定的回调地址
	CallbackURL string `json:"callback_url"`
}

// Trigger 工作流触发条件
type Trigger struct {
	Type      TriggerType `json:"type"`
	Threshold float64     `json:"threshold"`
}

// ApprovalLevel 审批层级配置
// MaxAmount 为 0 表示金额窗口无上界
type ApprovalLevel struct {
	Level                int      `json:"level"`
	Name                 string   `json:"name"`
	ApproverIDs          []string `json:"approver_ids"`
	ApproverRole         string   `json:"approver_role"`
	ApproverDepartmentID string   `json:"approver_department_id"`
	MinAmount            float64  `json:"min_amount"`
	MaxAmount            float64  `json:"max_amount"`
	RequiredApprovals    int      `json:"required_approvals"`
	RequireAll           bool     `json:"require_all"`
	EscalationHours      int      `json:"escalation_hours"`
	EscalatesToLevel     int      `json:"escalates_to_level"`
}

// Matches 判断金额是否落在层级的 [MinAmount, MaxAmount) 窗口内
func (l *ApprovalLevel) Matches(amount float64) bool {
	if amount < l.MinAmount {
		return false
	}
	if l.MaxAmount > 0 && amount >= l.MaxAmount {
		return false
	}
	return true
}

// ApprovalWorkflow 公司级审批工作流配置
type ApprovalWorkflow struct {
	ID          string          `json:"id"`
	CompanyID   string          `json:"company_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	EntityType  EntityType      `json:"entity_type"`
	Triggers    []Trigger       `json:"triggers"`
	Levels      []ApprovalLevel `json:"levels"`
	IsDefault   bool            `json:"is_default"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ApproverDecision 单个审批人的决定
type ApproverDecision struct {
	ApproverID string        `json:"approver_id"`
	Decision   DecisionValue `json:"decision"`
	Comment    string        `json:"comment"`
	DecidedAt  *time.Time    `json:"decided_at,omitempty"`
}

// DelegationRecord 步骤名册改写记录
type DelegationRecord struct {
	DelegationID string `json:"delegation_id"`
	FromID       string `json:"from_id"`
	ToID         string `json:"to_id"`
}

// ApprovalStep 审批层级的运行时实例
// 名册在激活时经委托解析后冻结,流程中不再重算
type ApprovalStep struct {
	ID                  string                       `json:"id"`
	Level               int                          `json:"level"`
	Name                string                       `json:"name"`
	Status              StepStatus                   `json:"status"`
	AssignedApproverIDs []string                     `json:"assigned_approver_ids"`
	Decisions           map[string]*ApproverDecision `json:"decisions"`
	ApprovalsRequired   int                          `json:"approvals_required"`
	ApprovalsReceived   int                          `json:"approvals_received"`
	RequireAll          bool                         `json:"require_all"`
	EscalationHours     int                          `json:"escalation_hours"`
	EscalatesToLevel    int                          `json:"escalates_to_level"`
	Delegations         []DelegationRecord           `json:"delegations,omitempty"`
	DueAt               *time.Time                   `json:"due_at,omitempty"`
	ActivatedAt         *time.Time                   `json:"activated_at,omitempty"`
	CompletedAt         *time.Time                   `json:"completed_at,omitempty"`
}

// Activated 判断步骤是否已激活
func (s *ApprovalStep) Activated() bool {
	return s.ActivatedAt != nil
}

// ApprovalRequest 工作流针对单个实体的一次实例化
// Steps 为聚合内子集合,生命周期不超出请求本身
type ApprovalRequest struct {
	ID            string          `json:"id"`
	CompanyID     string          `json:"company_id"`
	EntityID      string          `json:"entity_id"`
	EntityType    EntityType      `json:"entity_type"`
	Amount        float64         `json:"amount"`
	Currency      string          `json:"currency"`
	RequesterID   string          `json:"requester_id"`
	WorkflowID    string          `json:"workflow_id"`
	TriggerReason string          `json:"trigger_reason"`
	Status        RequestStatus   `json:"status"`
	CurrentLevel  int             `json:"current_level"`
	TotalLevels   int             `json:"total_levels"`
	Steps         []*ApprovalStep `json:"steps"`
	CallbackURL   string          `json:"callback_url,omitempty"`
	DueAt         *time.Time      `json:"due_at,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	DecidedByID   string          `json:"decided_by_id,omitempty"`
	DecisionNotes string          `json:"decision_notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// StepByLevel 按层级查找步骤
func (r *ApprovalRequest) StepByLevel(level int) *ApprovalStep {
	for _, step := range r.Steps {
		if step.Level == level {
			return step
		}
	}
	return nil
}

// ActiveStep 返回当前层级的步骤
func (r *ApprovalRequest) ActiveStep() *ApprovalStep {
	return r.StepByLevel(r.CurrentLevel)
}

// ApprovalDelegation 限时审批权转移
// 只读配置,编排器不会修改
type ApprovalDelegation struct {
	ID          string       `json:"id"`
	CompanyID   string       `json:"company_id"`
	DelegatorID string       `json:"delegator_id"`
	DelegateeID string       `json:"delegatee_id"`
	EntityTypes []EntityType `json:"entity_types"`
	MaxAmount   float64      `json:"max_amount"`
	StartDate   time.Time    `json:"start_date"`
	EndDate     time.Time    `json:"end_date"`
	IsActive    bool         `json:"is_active"`
}

// SpendingRule 优先级排序的消费规则
// 无状态配置,评估过程不修改规则本身
type SpendingRule struct {
	ID            string     `json:"id"`
	CompanyID     string     `json:"company_id"`
	Name          string     `json:"name"`
	Priority      int        `json:"priority"`
	MinAmount     float64    `json:"min_amount"`
	MaxAmount     float64    `json:"max_amount"`
	CategoryIDs   []string   `json:"category_ids"`
	ProductIDs    []string   `json:"product_ids"`
	Roles         []string   `json:"roles"`
	DepartmentIDs []string   `json:"department_ids"`
	Action        RuleAction `json:"action"`
	IsActive      bool       `json:"is_active"`
	CreatedAt     time.Time  `json:"created_at"`
}

// SpendingLimit 滚动时间窗口内的消费上限
// CurrentSpending 只能由消费账本的记账操作修改
type SpendingLimit struct {
	ID               string         `json:"id"`
	CompanyID        string         `json:"company_id"`
	Scope            LimitScope     `json:"scope"`
	EmployeeID       string         `json:"employee_id,omitempty"`
	DepartmentID     string         `json:"department_id,omitempty"`
	Role             string         `json:"role,omitempty"`
	Period           SpendingPeriod `json:"period"`
	LimitAmount      float64        `json:"limit_amount"`
	CurrentSpending  float64        `json:"current_spending"`
	WarningThreshold float64        `json:"warning_threshold"`
	IsActive         bool           `json:"is_active"`
	LastResetAt      time.Time      `json:"last_reset_at"`
	NextResetAt      time.Time      `json:"next_reset_at"`
}

// Remaining 剩余额度
func (l *SpendingLimit) Remaining() float64 {
	remaining := l.LimitAmount - l.CurrentSpending
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsWarning 是否达到预警阈值(派生字段)
func (l *SpendingLimit) IsWarning() bool {
	if l.WarningThreshold <= 0 {
		return false
	}
	return l.CurrentSpending >= l.LimitAmount*l.WarningThreshold
}

// IsExceeded 是否已超限(派生字段)
func (l *SpendingLimit) IsExceeded() bool {
	return l.CurrentSpending > l.LimitAmount
}

// SpendingTransaction 不可变的消费账本条目
// 金额为正表示消费,为负表示退款/冲正;修正只能追加新条目
type SpendingTransaction struct {
	ID           string          `json:"id"`
	CompanyID    string          `json:"company_id"`
	EmployeeID   string          `json:"employee_id"`
	DepartmentID string          `json:"department_id,omitempty"`
	Role         string          `json:"role,omitempty"`
	EntityID     string          `json:"entity_id"`
	EntityType   EntityType      `json:"entity_type"`
	Type         TransactionType `json:"type"`
	Amount       float64         `json:"amount"`
	Currency     string          `json:"currency"`
	LimitIDs     []string        `json:"limit_ids,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}
