package mcpserver

// Instructions is sent to clients during initialization.
const Instructions = `Brokerage trading server. Quotes, orders, positions and profit estimates for a Kite Connect account.

Log in first: call get_login_url, complete the login in a browser and pass the request_token from the redirect to login. Sessions expire at 06:00 IST.

Usage guidelines:

1. Token efficiency. Account data is verbose.
   - Do not request full order histories when a single date answers the question.
   - Prefer estimate_day_trade_profit and analyze_trading_profit over raw order lists.

2. Work in steps.
   - Try a tool on one ticker or one date before widening the query.
   - Split a large analysis into small focused calls.

3. Code over dumps.
   - When processing trading data, aggregate it with code instead of echoing raw records.

4. Private data.
   - Summarize findings. Report trends and totals rather than order ids or exact timestamps.
`

const tradingAssistantPrompt = `I'll help you manage your brokerage account and place trades.

I can:
- get stock quotes and latest prices
- place market and limit orders
- check your portfolio and positions
- view and cancel open orders
- estimate the realized profit of a trading day

When analyzing trading data I'll process it with code and give you a summary instead of every transaction.

Before any trade you need to log in through get_login_url and login.
What would you like to do today?`

const stockAnalysisPrompt = `I'll help you analyze %[1]s. I can provide:

1. Current market data and price information
2. Instrument details such as exchange, lot size and tick size
3. Your current position in %[1]s if you hold it
4. Help with placing trades for %[1]s

What would you like to know about %[1]s?`

const portfolioReviewPrompt = `I'll help you review your portfolio. We can look at:

1. Overall portfolio value and available cash
2. Individual holdings and open positions with their profit and loss
3. Open orders that have not executed yet
4. Orders placed through this server over a period

Would you like a complete overview, or should we focus on one area?`
