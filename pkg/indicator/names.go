package indicator

// Snapshot keys produced by the default catalogue
const (
	SMA20          = "sma_20"
	SMA50          = "sma_50"
	SMA200         = "sma_200"
	EMA9           = "ema_9"
	EMA21          = "ema_21"
	EMA50          = "ema_50"
	MACDLine       = "macd"
	MACDSignal     = "macd_signal"
	MACDHist       = "macd_hist"
	ADXValue       = "adx"
	PlusDIValue    = "plus_di"
	MinusDIValue   = "minus_di"
	ParabolicSAR   = "parabolic_sar"
	SuperTrendLine = "supertrend"
	SuperTrendDir  = "supertrend_direction"
	IchimokuTenkan = "ichimoku_tenkan"
	IchimokuKijun  = "ichimoku_kijun"
	IchimokuSpanA  = "ichimoku_senkou_a"
	IchimokuSpanB  = "ichimoku_senkou_b"

	RSIValue       = "rsi"
	StochK         = "stoch_k"
	StochD         = "stoch_d"
	WilliamsRValue = "williams_r"
	CCIValue       = "cci"
	ROCValue       = "roc"
	MFIValue       = "mfi"

	ATRValue      = "atr"
	NATRValue     = "natr"
	BBUpper       = "bb_upper"
	BBMiddle      = "bb_middle"
	BBLower       = "bb_lower"
	BBWidth       = "bb_width"
	BBPercent     = "bb_percent"
	KeltnerUpper  = "keltner_upper"
	KeltnerMiddle = "keltner_middle"
	KeltnerLower  = "keltner_lower"
	DonchianUpper = "donchian_upper"
	DonchianLower = "donchian_lower"
	DonchianPrior = "donchian_prior_high"
	SqueezeOn     = "squeeze"

	VWAPValue   = "vwap"
	VolumeSMA   = "volume_sma"
	VolumeRatio = "volume_ratio"
	OBVValue    = "obv"
	ADLine      = "ad_line"
	CMFValue    = "cmf"
	DollarVol   = "dollar_volume"
)
