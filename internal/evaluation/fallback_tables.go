package evaluation

// Generic nouns that show up in front of 同学 but are not names.
var stopwords = toSet(
	"全班", "全体", "全年级", "各位", "每位", "每一位", "这位", "那位", "几位", "多位",
	"其他", "其余", "部分", "大部分", "个别", "少数", "多数", "所有", "许多", "很多",
	"有些", "一些", "这些", "那些", "以上", "以下", "上述", "下列", "各个", "每个",
	"广大", "同班", "本班", "我班", "该班", "班级", "本组", "同组", "小组", "组内",
	"男生", "女生", "学生", "优秀", "后进", "进步", "积极", "认真", "活跃", "沉默",
	"内向", "外向", "班长", "班干部", "课代表", "组长", "学习委员", "值日", "新来",
	"高年级", "低年级", "表现优秀", "表现突出", "成绩优秀", "成绩较好", "需要关注",
	"亲爱的", "可爱的", "全部", "任何", "相关", "上面", "下面", "前面", "后面",
	"申请", "同桌", "邻座", "周围", "身边", "帮助",
)

// Leading characters of common family names.
var surnameLeads = runeSet(
	"王李张刘陈杨黄赵吴周徐孙马朱胡郭何高林罗郑梁谢宋唐许韩冯邓曹彭曾肖田董袁潘于蒋蔡余杜叶程苏魏吕丁任沈姚卢姜崔钟谭陆汪范金石廖贾夏韦付傅方白邹孟熊秦邱江尹薛闫段雷侯龙史陶黎贺顾毛郝龚邵万钱严覃武戴莫孔向汤常温康施文牛樊葛邢安齐易乔伍庞颜倪庄聂章鲁岳翟殷詹申欧耿关兰焦俞左柳甘祝包宁尚符舒阮柯纪梅童凌毕单季裴霍涂成苗谷盛曲翁冉骆蓝路游辛靳管柴蒙鲍华喻祁蒲房滕屈饶解牟艾尤阳时穆农司卓古吉缪简车项连芦麦褚娄窦戚岑景党宫费卜冷晏席卫米柏宗瞿桂全佟应臧闵苟邬边卞姬师和仇栾隋商刁沙荣巫寇桑郎甄丛仲虞敖巩明佘池查麻苑迟邝官封谈匡鞠惠荆乐冀郁胥南班储原栗燕楚鄢劳谌奚皮粟冼蔺楼盘满闻位厉伊仝区郜海阚花权强帅屠豆朴盖练廉禹井祖漆巴丰支卿国狄平计索宣晋相初门云容敬来扈晁芮都普阙浦戈伏鹿薄邸雍辜羊乌母裘亓修邰赫杭况那宿鲜印逯隆茹诸战慕危玉银亢嵇公哈湛宾戎勾茅利於呼居揭干但尉冶斯元束檀衣信展阴昝智幸奉植衡富尧闭由诸司欧皇尉慕宇轩令",
)

// Single characters after which a name may start mid-sentence.
var connectives = runeSet("的和与及跟同对让请给向被把是为在说叫像使令由将而也但或")

func toSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

func runeSet(s string) map[rune]struct{} {
	m := make(map[rune]struct{})
	for _, r := range s {
		m[r] = struct{}{}
	}
	return m
}
