package mcpserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(&mcp.Prompt{
		Name:        "trading_assistant",
		Description: "Start a trading session with the brokerage assistant.",
	}, textPrompt("Trading assistant", tradingAssistantPrompt))

	s.mcp.AddPrompt(&mcp.Prompt{
		Name:        "stock_analysis",
		Description: "Analyze a single stock.",
		Arguments: []*mcp.PromptArgument{{
			Name:        "ticker",
			Description: "Exchange trading symbol, e.g. INFY",
			Required:    true,
		}},
	}, s.stockAnalysisPrompt)

	s.mcp.AddPrompt(&mcp.Prompt{
		Name:        "portfolio_review",
		Description: "Review the portfolio, positions and open orders.",
	}, textPrompt("Portfolio review", portfolioReviewPrompt))
}

func textPrompt(description, text string) mcp.PromptHandler {
	return func(context.Context, *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		return userPrompt(description, text), nil
	}
}

func (s *Server) stockAnalysisPrompt(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	ticker, err := normalizeTicker(req.Params.Arguments["ticker"])
	if err != nil {
		return nil, fmt.Errorf("stock_analysis: %w", err)
	}
	return userPrompt("Stock analysis for "+ticker, fmt.Sprintf(stockAnalysisPrompt, ticker)), nil
}

func userPrompt(description, text string) *mcp.GetPromptResult {
	return &mcp.GetPromptResult{
		Description: description,
		Messages: []*mcp.PromptMessage{{
			Role:    "user",
			Content: &mcp.TextContent{Text: text},
		}},
	}
}
