package gcra

// allowScriptSrc follows the allowAtMost script of
// https://github.com/go-redis/redis_rate/blob/v10/lua.go, which derives
// from https://github.com/rwz/redis-gcra (Copyright (c) 2017 Pavel Pravosud).
//
// allowScriptSrc grants up to ARGV[4] tokens and never denies a request that
// can be partially served: when fewer tokens than requested are available the
// caller gets whatever is left.
//
// Redis TIME is shifted to 2017-01-01T00:00:00Z (1483228800) before any
// floating point work. The shifted value keeps 16 significant digits until
// 2048-09-09T01:46:39Z. Near 3e8 one ulp is about 6e-8s: diff is taken
// relative to tat, which is exactly now for a fresh key, and token counts
// within one TIME tick (1us) of a whole number are rounded to it. tat is
// stored with 17 significant digits; Lua's default conversion keeps 14.
const allowScriptSrc = `
if redis.replicate_commands then
  redis.replicate_commands()
end

local rate_limit_key = KEYS[1]
local burst = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local period = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])

local emission_interval = period / rate
local burst_offset = emission_interval * burst

local jan_1_2017 = 1483228800
local now = redis.call("TIME")
now = (tonumber(now[1]) - jan_1_2017) + (tonumber(now[2]) / 1000000)

local tat = redis.call("GET", rate_limit_key)

if not tat then
  tat = now
else
  tat = tonumber(tat)
end

tat = math.max(tat, now)

local diff = burst_offset - (tat - now)
local remaining = diff / emission_interval
local whole = math.floor(remaining + 0.5)
if math.abs(remaining - whole) * emission_interval < 0.000001 then
  remaining = whole
end

if remaining < 1 then
  local reset_after = tat - now
  local retry_after = emission_interval - diff
  return {0, 0, tostring(retry_after), tostring(reset_after)}
end

if remaining < cost then
  cost = remaining
  remaining = 0
else
  remaining = remaining - cost
end

local new_tat = tat + emission_interval * cost
local reset_after = (tat - now) + emission_interval * cost
if reset_after > 0 then
  redis.call("SET", rate_limit_key, string.format("%.17g", new_tat), "EX", math.ceil(reset_after))
end

return {cost, remaining, tostring(-1), tostring(reset_after)}
`

// peekScriptSrc reports the state allowScriptSrc would see for a single
// token without writing anything.
const peekScriptSrc = `
local rate_limit_key = KEYS[1]
local burst = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local period = tonumber(ARGV[3])

local emission_interval = period / rate
local burst_offset = emission_interval * burst

local jan_1_2017 = 1483228800
local now = redis.call("TIME")
now = (tonumber(now[1]) - jan_1_2017) + (tonumber(now[2]) / 1000000)

local tat = redis.call("GET", rate_limit_key)

if not tat then
  tat = now
else
  tat = tonumber(tat)
end

tat = math.max(tat, now)

local diff = burst_offset - (tat - now)
local remaining = diff / emission_interval
local whole = math.floor(remaining + 0.5)
if math.abs(remaining - whole) * emission_interval < 0.000001 then
  remaining = whole
end
local retry_after = -1

if remaining < 1 then
  retry_after = emission_interval - diff
  remaining = 0
end

return {0, remaining, tostring(retry_after), tostring(tat - now)}
`

var (
	allowScript = NewScript(allowScriptSrc)
	peekScript  = NewScript(peekScriptSrc)
)
