package callback

import (
	"github.com/hupe1980/adkpatterns/core"
	"github.com/hupe1980/adkpatterns/logging"
	"github.com/hupe1980/adkpatterns/model"
)

// Logging returns hooks that record every lifecycle point on logger. They
// never short-circuit.
func Logging(logger logging.Logger) Set {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	return Set{
		BeforeAgent: []BeforeAgent{func(cbCtx *core.CallbackContext) (*core.Content, error) {
			logger.Info("callback."+string(BeforeAgentType), "agent", cbCtx.AgentName(), "run_id", cbCtx.RunID())
			return nil, nil
		}},
		AfterAgent: []AfterAgent{func(cbCtx *core.CallbackContext) (*core.Content, error) {
			logger.Info("callback."+string(AfterAgentType), "agent", cbCtx.AgentName(), "run_id", cbCtx.RunID())
			return nil, nil
		}},
		BeforeModel: []BeforeModel{func(cbCtx *core.CallbackContext, req *model.Request) (*model.Response, error) {
			logger.Debug("callback."+string(BeforeModelType), "agent", cbCtx.AgentName(), "contents", len(req.Contents), "tools", len(req.Tools))
			return nil, nil
		}},
		AfterModel: []AfterModel{func(cbCtx *core.CallbackContext, resp *model.Response) (*model.Response, error) {
			logger.Debug("callback."+string(AfterModelType), "agent", cbCtx.AgentName(), "finish_reason", resp.FinishReason, "text_len", len(resp.Text()))
			return nil, nil
		}},
		BeforeTool: []BeforeTool{func(toolCtx *core.ToolContext, name string, args map[string]any) (map[string]any, error) {
			logger.Info("callback."+string(BeforeToolType), "agent", toolCtx.AgentName(), "tool", name, "args", len(args))
			return nil, nil
		}},
		AfterTool: []AfterTool{func(toolCtx *core.ToolContext, name string, _ map[string]any, _ any) (any, error) {
			logger.Info("callback."+string(AfterToolType), "agent", toolCtx.AgentName(), "tool", name)
			return nil, nil
		}},
	}
}
