package integration_test

import (
	"testing"

	"github.com/jewelmart/approval-core/internal/engine"
	"github.com/jewelmart/approval-core/internal/integration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupWorkflowManager 创建工作流管理器
func setupWorkflowManager(t *testing.T) integration.WorkflowManager {
	return integration.NewWorkflowManager(setupIntegrationDB(t))
}

// TestWorkflowManager_CreateAndGet 创建后可按 ID 读回
func TestWorkflowManager_CreateAndGet(t *testing.T) {
	mgr := setupWorkflowManager(t)
	wf := twoLevelWorkflow("co-1")
	require.NoError(t, mgr.Create(wf))
	require.NotEmpty(t, wf.ID)

	loaded, err := mgr.Get(wf.ID)
	require.NoError(t, err)
	assert.Equal(t, wf.Name, loaded.Name)
	assert.Len(t, loaded.Levels, 2)
	assert.Equal(t, []string{"mgr-1"}, loaded.Levels[0].ApproverIDs)
}

// TestWorkflowManager_CreateValidation 非法配置被拒绝
func TestWorkflowManager_CreateValidation(t *testing.T) {
	mgr := setupWorkflowManager(t)

	cases := []struct {
		name   string
		mutate func(wf *engine.ApprovalWorkflow)
	}{
		{"missing company", func(wf *engine.ApprovalWorkflow) { wf.CompanyID = "" }},
		{"invalid entity type", func(wf *engine.ApprovalWorkflow) { wf.EntityType = "invoice" }},
		{"no levels", func(wf *engine.ApprovalWorkflow) { wf.Levels = nil }},
		{"duplicate level", func(wf *engine.ApprovalWorkflow) { wf.Levels[1].Level = 1 }},
		{"empty amount window", func(wf *engine.ApprovalWorkflow) {
			wf.Levels[0].MinAmount = 500
			wf.Levels[0].MaxAmount = 500
		}},
		{"no approvers", func(wf *engine.ApprovalWorkflow) { wf.Levels[0].ApproverIDs = nil }},
		{"escalation to undefined level", func(wf *engine.ApprovalWorkflow) { wf.Levels[0].EscalatesToLevel = 9 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wf := twoLevelWorkflow("co-1")
			tc.mutate(wf)
			err := mgr.Create(wf)
			var cfgErr *engine.ConfigurationError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

// TestWorkflowManager_ResolveExplicit 显式指定的工作流优先且校验归属
func TestWorkflowManager_ResolveExplicit(t *testing.T) {
	mgr := setupWorkflowManager(t)
	wf := twoLevelWorkflow("co-1")
	wf.IsDefault = false
	require.NoError(t, mgr.Create(wf))

	sub := orderSubmission("co-1", 5000)
	sub.WorkflowID = wf.ID
	resolved, err := mgr.Resolve(sub)
	require.NoError(t, err)
	assert.Equal(t, wf.ID, resolved.ID)

	// 不存在的显式工作流属于配置错误
	sub.WorkflowID = "wf-missing"
	_, err = mgr.Resolve(sub)
	var cfgErr *engine.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)

	// 其他公司的提交不能引用该工作流
	other := orderSubmission("co-2", 5000)
	other.WorkflowID = wf.ID
	_, err = mgr.Resolve(other)
	assert.ErrorAs(t, err, &cfgErr)

	// 实体类型不匹配同样拒绝
	quote := orderSubmission("co-1", 5000)
	quote.EntityType = engine.EntityQuote
	quote.WorkflowID = wf.ID
	_, err = mgr.Resolve(quote)
	assert.ErrorAs(t, err, &cfgErr)
}

// TestWorkflowManager_ResolveDefault 默认工作流按公司与实体类型回落
func TestWorkflowManager_ResolveDefault(t *testing.T) {
	mgr := setupWorkflowManager(t)
	wf := twoLevelWorkflow("co-1")
	require.NoError(t, mgr.Create(wf))

	resolved, err := mgr.Resolve(orderSubmission("co-1", 5000))
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, wf.ID, resolved.ID)

	// 无默认工作流时返回 nil,表示无需审批
	resolved, err = mgr.Resolve(orderSubmission("co-2", 5000))
	require.NoError(t, err)
	assert.Nil(t, resolved)

	// 停用的默认工作流不参与解析
	wf.IsActive = false
	require.NoError(t, mgr.Update(wf))
	resolved, err = mgr.Resolve(orderSubmission("co-1", 5000))
	require.NoError(t, err)
	assert.Nil(t, resolved)
}

// TestWorkflowManager_UpdateAndDelete 更新保留创建时间,删除后不可读
func TestWorkflowManager_UpdateAndDelete(t *testing.T) {
	mgr := setupWorkflowManager(t)
	wf := twoLevelWorkflow("co-1")
	require.NoError(t, mgr.Create(wf))

	wf.Name = "renamed"
	require.NoError(t, mgr.Update(wf))

	loaded, err := mgr.Get(wf.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", loaded.Name)

	require.NoError(t, mgr.Delete(wf.ID))
	_, err = mgr.Get(wf.ID)
	assert.True(t, integration.IsNotFound(err))
}

// TestWorkflowManager_List 按公司列出
func TestWorkflowManager_List(t *testing.T) {
	mgr := setupWorkflowManager(t)
	require.NoError(t, mgr.Create(twoLevelWorkflow("co-1")))
	other := twoLevelWorkflow("co-1")
	other.Name = "quote approvals"
	other.EntityType = engine.EntityQuote
	other.IsDefault = false
	require.NoError(t, mgr.Create(other))
	require.NoError(t, mgr.Create(twoLevelWorkflow("co-2")))

	workflows, err := mgr.List("co-1")
	require.NoError(t, err)
	assert.Len(t, workflows, 2)
}
