package renderer

// GLSL sources for every pass. Shared chunks are spliced in by string
// concatenation so the encoding helpers stay identical across shaders.

const maxForwardLights = 8

const glslHeader = `#version 410 core
`

// Octahedral normal encoding keeps the normal target at two channels.
const glslOctahedral = `
vec2 octWrap(vec2 v)
{
    return (1.0 - abs(v.yx)) * vec2(v.x >= 0.0 ? 1.0 : -1.0, v.y >= 0.0 ? 1.0 : -1.0);
}

vec2 encodeOctahedral(vec3 n)
{
    n /= (abs(n.x) + abs(n.y) + abs(n.z));
    n.xy = n.z >= 0.0 ? n.xy : octWrap(n.xy);
    return n.xy * 0.5 + 0.5;
}

vec3 decodeOctahedral(vec2 f)
{
    f = f * 2.0 - 1.0;
    vec3 n = vec3(f.x, f.y, 1.0 - abs(f.x) - abs(f.y));
    float t = clamp(-n.z, 0.0, 1.0);
    n.x += n.x >= 0.0 ? -t : t;
    n.y += n.y >= 0.0 ? -t : t;
    return normalize(n);
}
`

// Reconstructs view-space position from the hardware depth buffer.
const glslDepthPosition = `
vec3 positionFromDepth(vec2 uv, float depth, mat4 invProj)
{
    vec4 clip = vec4(uv * 2.0 - 1.0, depth * 2.0 - 1.0, 1.0);
    vec4 view = invProj * clip;
    return view.xyz / view.w;
}
`

const glslPBR = `
const float PI = 3.14159265359;

float distributionGGX(float NdotH, float roughness)
{
    float a = roughness * roughness;
    float a2 = a * a;
    float d = NdotH * NdotH * (a2 - 1.0) + 1.0;
    return a2 / (PI * d * d);
}

float geometrySmith(float NdotV, float NdotL, float roughness)
{
    float r = roughness + 1.0;
    float k = (r * r) / 8.0;
    float gv = NdotV / (NdotV * (1.0 - k) + k);
    float gl = NdotL / (NdotL * (1.0 - k) + k);
    return gv * gl;
}

vec3 fresnelSchlick(float cosTheta, vec3 F0)
{
    return F0 + (1.0 - F0) * pow(clamp(1.0 - cosTheta, 0.0, 1.0), 5.0);
}

vec3 fresnelSchlickRoughness(float cosTheta, vec3 F0, float roughness)
{
    return F0 + (max(vec3(1.0 - roughness), F0) - F0) * pow(clamp(1.0 - cosTheta, 0.0, 1.0), 5.0);
}
`

// Fullscreen triangle from gl_VertexID, no vertex buffer needed.
const vsScreenSource = glslHeader + `
out vec2 vTexCoord;

void main()
{
    vec2 pos = vec2(float((gl_VertexID & 1) << 2) - 1.0, float((gl_VertexID & 2) << 1) - 1.0);
    vTexCoord = pos * 0.5 + 0.5;
    gl_Position = vec4(pos, 0.0, 1.0);
}
`

/* === Geometry (G-buffer) === */

const vsGeometrySource = glslHeader + `
layout(location = 0) in vec3 aPosition;
layout(location = 1) in vec2 aTexCoord;
layout(location = 2) in vec3 aNormal;
layout(location = 3) in vec4 aColor;
layout(location = 4) in vec4 aTangent;
layout(location = 5) in ivec4 aBoneIDs;
layout(location = 6) in vec4 aBoneWeights;
layout(location = 10) in vec3 aInstancePosition;
layout(location = 11) in vec4 aInstanceRotation;
layout(location = 12) in vec3 aInstanceScale;
layout(location = 13) in vec4 aInstanceColor;

uniform mat4 uMatModel;
uniform mat4 uMatVP;
uniform mat4 uMatNormal;
uniform bool uInstanced;
uniform bool uSkinned;
uniform sampler2D uTexBoneMatrices;

out vec2 vTexCoord;
out vec4 vColor;
out mat3 vTBN;
out vec3 vWorldPos;

vec3 rotateByQuat(vec3 v, vec4 q)
{
    return v + 2.0 * cross(q.xyz, cross(q.xyz, v) + q.w * v);
}

mat4 boneMatrix(int id)
{
    return mat4(
        texelFetch(uTexBoneMatrices, ivec2(0, id), 0),
        texelFetch(uTexBoneMatrices, ivec2(1, id), 0),
        texelFetch(uTexBoneMatrices, ivec2(2, id), 0),
        texelFetch(uTexBoneMatrices, ivec2(3, id), 0));
}

void main()
{
    vec3 position = aPosition;
    vec3 normal = aNormal;
    vec3 tangent = aTangent.xyz;
    vec4 color = aColor;

    if (uSkinned) {
        mat4 skin =
            aBoneWeights.x * boneMatrix(aBoneIDs.x) +
            aBoneWeights.y * boneMatrix(aBoneIDs.y) +
            aBoneWeights.z * boneMatrix(aBoneIDs.z) +
            aBoneWeights.w * boneMatrix(aBoneIDs.w);
        position = vec3(skin * vec4(position, 1.0));
        normal = mat3(skin) * normal;
        tangent = mat3(skin) * tangent;
    }

    if (uInstanced) {
        position = rotateByQuat(position * aInstanceScale, aInstanceRotation) + aInstancePosition;
        normal = rotateByQuat(normal, aInstanceRotation);
        tangent = rotateByQuat(tangent, aInstanceRotation);
        color *= aInstanceColor;
    }

    vec3 worldNormal = normalize(mat3(uMatNormal) * normal);
    vec3 worldTangent = normalize(mat3(uMatModel) * tangent);
    worldTangent = normalize(worldTangent - dot(worldTangent, worldNormal) * worldNormal);
    vec3 worldBitangent = cross(worldNormal, worldTangent) * aTangent.w;

    vec4 world = uMatModel * vec4(position, 1.0);

    vTexCoord = aTexCoord;
    vColor = color;
    vTBN = mat3(worldTangent, worldBitangent, worldNormal);
    vWorldPos = world.xyz;

    gl_Position = uMatVP * world;
}
`

const fsGeometrySource = glslHeader + `
in vec2 vTexCoord;
in vec4 vColor;
in mat3 vTBN;

uniform sampler2D uTexAlbedo;
uniform sampler2D uTexNormal;
uniform sampler2D uTexEmission;
uniform sampler2D uTexORM;
uniform vec4 uColAlbedo;
uniform vec3 uColEmission;
uniform float uValEmission;
uniform float uValOcclusion;
uniform float uValRoughness;
uniform float uValMetalness;
uniform float uAlphaCutoff;
uniform float uNormalScale;

layout(location = 0) out vec3 outAlbedo;
layout(location = 1) out vec2 outNormal;
layout(location = 2) out vec3 outORM;
layout(location = 3) out vec3 outEmission;
` + glslOctahedral + `
void main()
{
    vec4 albedo = texture(uTexAlbedo, vTexCoord) * uColAlbedo * vColor;
    if (albedo.a < uAlphaCutoff) discard;

    vec3 tangentNormal = texture(uTexNormal, vTexCoord).rgb * 2.0 - 1.0;
    tangentNormal.xy *= uNormalScale;
    vec3 normal = normalize(vTBN * tangentNormal);

    vec3 orm = texture(uTexORM, vTexCoord).rgb;
    orm.r *= uValOcclusion;
    orm.g *= uValRoughness;
    orm.b *= uValMetalness;

    outAlbedo = albedo.rgb;
    outNormal = encodeOctahedral(normal);
    outORM = orm;
    outEmission = texture(uTexEmission, vTexCoord).rgb * uColEmission * uValEmission;
}
`

/* === Decals === */

const vsDecalSource = glslHeader + `
layout(location = 0) in vec3 aPosition;

uniform mat4 uMatModel;
uniform mat4 uMatVP;

void main()
{
    gl_Position = uMatVP * uMatModel * vec4(aPosition, 1.0);
}
`

const fsDecalSource = glslHeader + `
uniform sampler2D uTexAlbedo;
uniform sampler2D uTexNormal;
uniform sampler2D uTexEmission;
uniform sampler2D uTexORM;
uniform sampler2D uTexDepth;
uniform vec4 uColAlbedo;
uniform vec3 uColEmission;
uniform float uValEmission;
uniform float uValOcclusion;
uniform float uValRoughness;
uniform float uValMetalness;
uniform mat4 uMatInvModel;
uniform mat4 uMatInvView;
uniform mat4 uMatInvProj;
uniform vec2 uResolution;

layout(location = 0) out vec3 outAlbedo;
layout(location = 1) out vec2 outNormal;
layout(location = 2) out vec3 outORM;
layout(location = 3) out vec3 outEmission;
` + glslOctahedral + glslDepthPosition + `
void main()
{
    vec2 uv = gl_FragCoord.xy / uResolution;
    float depth = texture(uTexDepth, uv).r;
    vec3 viewPos = positionFromDepth(uv, depth, uMatInvProj);
    vec3 worldPos = vec3(uMatInvView * vec4(viewPos, 1.0));

    // Project the scene point into the unit decal box.
    vec3 local = vec3(uMatInvModel * vec4(worldPos, 1.0));
    if (any(greaterThan(abs(local), vec3(0.5)))) discard;

    vec2 decalUV = local.xy + 0.5;
    vec4 albedo = texture(uTexAlbedo, decalUV) * uColAlbedo;
    if (albedo.a < 0.01) discard;

    // Screen-space derivatives give the receiving surface orientation.
    vec3 ddxPos = dFdx(worldPos);
    vec3 ddyPos = dFdy(worldPos);
    vec3 surfNormal = normalize(cross(ddxPos, ddyPos));

    vec3 tangentNormal = texture(uTexNormal, decalUV).rgb * 2.0 - 1.0;
    vec3 tangent = normalize(ddxPos);
    vec3 bitangent = cross(surfNormal, tangent);
    vec3 normal = normalize(mat3(tangent, bitangent, surfNormal) * tangentNormal);

    vec3 orm = texture(uTexORM, decalUV).rgb;
    orm.r *= uValOcclusion;
    orm.g *= uValRoughness;
    orm.b *= uValMetalness;

    outAlbedo = albedo.rgb;
    outNormal = encodeOctahedral(normal);
    outORM = orm;
    outEmission = texture(uTexEmission, decalUV).rgb * uColEmission * uValEmission;
}
`

/* === Shadow depth === */

const vsDepthSource = glslHeader + `
layout(location = 0) in vec3 aPosition;
layout(location = 1) in vec2 aTexCoord;
layout(location = 5) in ivec4 aBoneIDs;
layout(location = 6) in vec4 aBoneWeights;
layout(location = 10) in vec3 aInstancePosition;
layout(location = 11) in vec4 aInstanceRotation;
layout(location = 12) in vec3 aInstanceScale;

uniform mat4 uMatModel;
uniform mat4 uMatVP;
uniform bool uInstanced;
uniform bool uSkinned;
uniform sampler2D uTexBoneMatrices;

out vec2 vTexCoord;
out vec3 vWorldPos;

vec3 rotateByQuat(vec3 v, vec4 q)
{
    return v + 2.0 * cross(q.xyz, cross(q.xyz, v) + q.w * v);
}

mat4 boneMatrix(int id)
{
    return mat4(
        texelFetch(uTexBoneMatrices, ivec2(0, id), 0),
        texelFetch(uTexBoneMatrices, ivec2(1, id), 0),
        texelFetch(uTexBoneMatrices, ivec2(2, id), 0),
        texelFetch(uTexBoneMatrices, ivec2(3, id), 0));
}

void main()
{
    vec3 position = aPosition;

    if (uSkinned) {
        mat4 skin =
            aBoneWeights.x * boneMatrix(aBoneIDs.x) +
            aBoneWeights.y * boneMatrix(aBoneIDs.y) +
            aBoneWeights.z * boneMatrix(aBoneIDs.z) +
            aBoneWeights.w * boneMatrix(aBoneIDs.w);
        position = vec3(skin * vec4(position, 1.0));
    }

    if (uInstanced) {
        position = rotateByQuat(position * aInstanceScale, aInstanceRotation) + aInstancePosition;
    }

    vec4 world = uMatModel * vec4(position, 1.0);
    vTexCoord = aTexCoord;
    vWorldPos = world.xyz;
    gl_Position = uMatVP * world;
}
`

const fsDepthSource = glslHeader + `
in vec2 vTexCoord;
in vec3 vWorldPos;

uniform sampler2D uTexAlbedo;
uniform float uAlphaCutoff;
uniform vec3 uLightPosition;
uniform float uFar;
uniform bool uDistanceDepth;

void main()
{
    if (texture(uTexAlbedo, vTexCoord).a < uAlphaCutoff) discard;

    // Omni faces store linear distance so the cube lookup stays symmetric.
    if (uDistanceDepth) {
        gl_FragDepth = length(vWorldPos - uLightPosition) / uFar;
    } else {
        gl_FragDepth = gl_FragCoord.z;
    }
}
`

/* === SSAO === */

const fsSSAOSource = glslHeader + `
in vec2 vTexCoord;

uniform sampler2D uTexDepth;
uniform sampler2D uTexNormal;
uniform sampler2D uTexNoise;
uniform vec3 uKernel[32];
uniform mat4 uMatProj;
uniform mat4 uMatInvProj;
uniform mat4 uMatView;
uniform float uRadius;
uniform float uBias;
uniform float uIntensity;
uniform int uIterations;
uniform vec2 uNoiseScale;

layout(location = 0) out float outOcclusion;
` + glslOctahedral + glslDepthPosition + `
void main()
{
    float depth = texture(uTexDepth, vTexCoord).r;
    if (depth >= 1.0) {
        outOcclusion = 1.0;
        return;
    }

    vec3 viewPos = positionFromDepth(vTexCoord, depth, uMatInvProj);
    vec3 normal = mat3(uMatView) * decodeOctahedral(texture(uTexNormal, vTexCoord).rg);
    vec3 random = normalize(texture(uTexNoise, vTexCoord * uNoiseScale).xyz * 2.0 - 1.0);

    vec3 tangent = normalize(random - normal * dot(random, normal));
    vec3 bitangent = cross(normal, tangent);
    mat3 tbn = mat3(tangent, bitangent, normal);

    float occlusion = 0.0;
    for (int i = 0; i < uIterations; i++) {
        vec3 samplePos = viewPos + (tbn * uKernel[i]) * uRadius;

        vec4 offset = uMatProj * vec4(samplePos, 1.0);
        offset.xyz /= offset.w;
        offset.xyz = offset.xyz * 0.5 + 0.5;

        float sampleDepth = positionFromDepth(offset.xy, texture(uTexDepth, offset.xy).r, uMatInvProj).z;
        float rangeCheck = smoothstep(0.0, 1.0, uRadius / abs(viewPos.z - sampleDepth));
        occlusion += (sampleDepth >= samplePos.z + uBias ? 1.0 : 0.0) * rangeCheck;
    }

    occlusion = 1.0 - occlusion / float(uIterations);
    outOcclusion = pow(occlusion, uIntensity);
}
`

// Cross-bilateral blur, one axis per pass. Depth-aware to keep edges sharp.
const fsBilateralBlurSource = glslHeader + `
in vec2 vTexCoord;

uniform sampler2D uTexture;
uniform sampler2D uTexDepth;
uniform vec2 uDirection;
uniform vec2 uTexelSize;

layout(location = 0) out vec4 outColor;

void main()
{
    float centerDepth = texture(uTexDepth, vTexCoord).r;
    vec4 sum = texture(uTexture, vTexCoord);
    float weightSum = 1.0;

    for (int i = 1; i <= 4; i++) {
        vec2 offset = uDirection * uTexelSize * float(i);
        for (int s = -1; s <= 1; s += 2) {
            vec2 uv = vTexCoord + offset * float(s);
            float depth = texture(uTexDepth, uv).r;
            float w = exp(-float(i * i) * 0.125) * exp(-abs(depth - centerDepth) * 800.0);
            sum += texture(uTexture, uv) * w;
            weightSum += w;
        }
    }

    outColor = sum / weightSum;
}
`

/* === SSIL === */

const fsSSILSource = glslHeader + `
in vec2 vTexCoord;

uniform sampler2D uTexDepth;
uniform sampler2D uTexNormal;
uniform sampler2D uTexScene;
uniform sampler2D uTexHistory;
uniform sampler2D uTexNoise;
uniform mat4 uMatProj;
uniform mat4 uMatInvProj;
uniform mat4 uMatView;
uniform float uRadius;
uniform float uIntensity;
uniform vec2 uNoiseScale;

layout(location = 0) out vec4 outIndirect;
` + glslOctahedral + glslDepthPosition + `
void main()
{
    float depth = texture(uTexDepth, vTexCoord).r;
    if (depth >= 1.0) {
        outIndirect = vec4(0.0);
        return;
    }

    vec3 viewPos = positionFromDepth(vTexCoord, depth, uMatInvProj);
    vec3 normal = mat3(uMatView) * decodeOctahedral(texture(uTexNormal, vTexCoord).rg);
    vec3 random = normalize(texture(uTexNoise, vTexCoord * uNoiseScale).xyz * 2.0 - 1.0);

    vec3 tangent = normalize(random - normal * dot(random, normal));
    vec3 bitangent = cross(normal, tangent);
    mat3 tbn = mat3(tangent, bitangent, normal);

    const int SAMPLES = 8;
    vec3 indirect = vec3(0.0);
    for (int i = 0; i < SAMPLES; i++) {
        float a = (float(i) + 0.5) / float(SAMPLES) * 6.2831853;
        vec3 dir = tbn * vec3(cos(a) * 0.7, sin(a) * 0.7, 0.7);
        vec3 samplePos = viewPos + dir * uRadius;

        vec4 offset = uMatProj * vec4(samplePos, 1.0);
        offset.xyz /= offset.w;
        offset.xy = offset.xy * 0.5 + 0.5;
        if (any(lessThan(offset.xy, vec2(0.0))) || any(greaterThan(offset.xy, vec2(1.0)))) continue;

        float sampleDepth = positionFromDepth(offset.xy, texture(uTexDepth, offset.xy).r, uMatInvProj).z;
        if (sampleDepth >= samplePos.z) {
            vec3 sampleNormal = mat3(uMatView) * decodeOctahedral(texture(uTexNormal, offset.xy).rg);
            float facing = max(dot(sampleNormal, -dir), 0.0);
            indirect += texture(uTexScene, offset.xy).rgb * facing;
        }
    }
    indirect *= uIntensity / float(SAMPLES);

    // Temporal accumulation against last frame's result.
    vec3 history = texture(uTexHistory, vTexCoord).rgb;
    outIndirect = vec4(mix(indirect, history, 0.9), 1.0);
}
`

/* === SSR === */

const fsSSRSource = glslHeader + `
in vec2 vTexCoord;

uniform sampler2D uTexDepth;
uniform sampler2D uTexNormal;
uniform sampler2D uTexORM;
uniform sampler2D uTexScene;
uniform mat4 uMatProj;
uniform mat4 uMatInvProj;
uniform mat4 uMatView;
uniform int uMaxSteps;
uniform float uThickness;
uniform float uMaxDistance;

layout(location = 0) out vec4 outReflection;
` + glslOctahedral + glslDepthPosition + `
void main()
{
    float roughness = texture(uTexORM, vTexCoord).g;
    float depth = texture(uTexDepth, vTexCoord).r;
    if (depth >= 1.0 || roughness > 0.9) {
        outReflection = vec4(0.0);
        return;
    }

    vec3 viewPos = positionFromDepth(vTexCoord, depth, uMatInvProj);
    vec3 normal = mat3(uMatView) * decodeOctahedral(texture(uTexNormal, vTexCoord).rg);
    vec3 reflected = reflect(normalize(viewPos), normal);

    float stepLen = uMaxDistance / float(uMaxSteps);
    vec3 march = viewPos;
    vec2 hitUV = vec2(-1.0);

    for (int i = 0; i < uMaxSteps; i++) {
        march += reflected * stepLen;

        vec4 clip = uMatProj * vec4(march, 1.0);
        vec2 uv = (clip.xy / clip.w) * 0.5 + 0.5;
        if (any(lessThan(uv, vec2(0.0))) || any(greaterThan(uv, vec2(1.0)))) break;

        float sceneZ = positionFromDepth(uv, texture(uTexDepth, uv).r, uMatInvProj).z;
        float delta = sceneZ - march.z;
        if (delta > 0.0 && delta < uThickness) {
            hitUV = uv;
            break;
        }
    }

    if (hitUV.x < 0.0) {
        outReflection = vec4(0.0);
        return;
    }

    // Rougher surfaces sample blurrier mips of the scene chain.
    vec2 edge = abs(hitUV * 2.0 - 1.0);
    float fade = 1.0 - max(edge.x, edge.y);
    vec3 color = textureLod(uTexScene, hitUV, roughness * 6.0).rgb;
    outReflection = vec4(color, fade * (1.0 - roughness));
}
`

/* === Deferred lighting (one light per draw, additive) === */

const fsLightSource = glslHeader + `
in vec2 vTexCoord;

uniform sampler2D uTexAlbedo;
uniform sampler2D uTexNormal;
uniform sampler2D uTexDepth;
uniform sampler2D uTexORM;
uniform sampler2DArray uTexShadowMap;
uniform samplerCubeArray uCubeShadowMap;

uniform int uLightType;
uniform vec3 uLightColor;
uniform vec3 uLightPosition;
uniform vec3 uLightDirection;
uniform float uLightEnergy;
uniform float uLightSpecular;
uniform float uLightRange;
uniform float uLightAttenuation;
uniform float uLightInnerCutOff;
uniform float uLightOuterCutOff;

uniform bool uShadow;
uniform int uShadowLayer;
uniform float uShadowBias;
uniform float uShadowSoftness;
uniform mat4 uMatShadowVP;

uniform vec3 uViewPosition;
uniform mat4 uMatInvProj;
uniform mat4 uMatInvView;

layout(location = 0) out vec3 outDiffuse;
layout(location = 1) out vec3 outSpecular;
` + glslOctahedral + glslDepthPosition + glslPBR + `
float shadow2D(vec3 worldPos)
{
    vec4 p = uMatShadowVP * vec4(worldPos, 1.0);
    vec3 proj = p.xyz / p.w * 0.5 + 0.5;
    if (proj.z > 1.0) return 1.0;

    float shadow = 0.0;
    for (int x = -1; x <= 1; x++) {
        for (int y = -1; y <= 1; y++) {
            vec2 offset = vec2(x, y) * uShadowSoftness * 0.25;
            float d = texture(uTexShadowMap, vec3(proj.xy + offset, float(uShadowLayer))).r;
            shadow += proj.z - uShadowBias > d ? 0.0 : 1.0;
        }
    }
    return shadow / 9.0;
}

float shadowCube(vec3 worldPos)
{
    vec3 toFrag = worldPos - uLightPosition;
    float current = length(toFrag) / uLightRange;
    float d = texture(uCubeShadowMap, vec4(toFrag, float(uShadowLayer))).r;
    return current - uShadowBias > d ? 0.0 : 1.0;
}

void main()
{
    float depth = texture(uTexDepth, vTexCoord).r;
    if (depth >= 1.0) discard;

    vec3 viewPos = positionFromDepth(vTexCoord, depth, uMatInvProj);
    vec3 worldPos = vec3(uMatInvView * vec4(viewPos, 1.0));
    vec3 N = decodeOctahedral(texture(uTexNormal, vTexCoord).rg);
    vec3 V = normalize(uViewPosition - worldPos);

    vec3 albedo = texture(uTexAlbedo, vTexCoord).rgb;
    vec3 orm = texture(uTexORM, vTexCoord).rgb;
    float roughness = max(orm.g, 0.05);
    float metalness = orm.b;

    vec3 L;
    float attenuation = 1.0;

    if (uLightType == 0) {
        L = -uLightDirection;
    } else {
        vec3 toLight = uLightPosition - worldPos;
        float dist = length(toLight);
        if (dist > uLightRange) discard;
        L = toLight / dist;
        attenuation = pow(clamp(1.0 - dist / uLightRange, 0.0, 1.0), uLightAttenuation);

        if (uLightType == 1) {
            float theta = dot(L, -uLightDirection);
            float epsilon = uLightInnerCutOff - uLightOuterCutOff;
            attenuation *= clamp((theta - uLightOuterCutOff) / epsilon, 0.0, 1.0);
        }
    }

    float NdotL = max(dot(N, L), 0.0);
    if (NdotL <= 0.0 || attenuation <= 0.0) discard;

    float shadow = 1.0;
    if (uShadow) {
        shadow = (uLightType == 2) ? shadowCube(worldPos) : shadow2D(worldPos);
        if (shadow <= 0.0) discard;
    }

    vec3 H = normalize(V + L);
    float NdotV = max(dot(N, V), 0.0);
    float NdotH = max(dot(N, H), 0.0);

    vec3 F0 = mix(vec3(0.04), albedo, metalness);
    float D = distributionGGX(NdotH, roughness);
    float G = geometrySmith(NdotV, NdotL, roughness);
    vec3 F = fresnelSchlick(max(dot(H, V), 0.0), F0);

    vec3 kD = (vec3(1.0) - F) * (1.0 - metalness);
    vec3 radiance = uLightColor * uLightEnergy * attenuation * shadow * NdotL;

    outDiffuse = kD / PI * radiance;
    outSpecular = (D * G * F) / max(4.0 * NdotV * NdotL, 0.0001) * radiance * uLightSpecular;
}
`

/* === Ambient / IBL === */

const fsAmbientSource = glslHeader + `
in vec2 vTexCoord;

uniform sampler2D uTexAlbedo;
uniform sampler2D uTexNormal;
uniform sampler2D uTexDepth;
uniform sampler2D uTexORM;
uniform sampler2D uTexSSAO;
uniform sampler2D uTexSSIL;
uniform samplerCube uCubeIrradiance;
uniform samplerCube uCubePrefilter;
uniform sampler2D uTexBrdfLut;
uniform bool uHasSkybox;
uniform vec4 uQuatSkybox;
uniform float uSkyEnergy;
uniform vec3 uColAmbient;
uniform float uAmbientEnergy;
uniform vec3 uViewPosition;
uniform mat4 uMatInvProj;
uniform mat4 uMatInvView;

layout(location = 0) out vec3 outDiffuse;
layout(location = 1) out vec3 outSpecular;
` + glslOctahedral + glslDepthPosition + glslPBR + `
vec3 rotateByQuat(vec3 v, vec4 q)
{
    return v + 2.0 * cross(q.xyz, cross(q.xyz, v) + q.w * v);
}

void main()
{
    float depth = texture(uTexDepth, vTexCoord).r;
    if (depth >= 1.0) discard;

    vec3 viewPos = positionFromDepth(vTexCoord, depth, uMatInvProj);
    vec3 worldPos = vec3(uMatInvView * vec4(viewPos, 1.0));
    vec3 N = decodeOctahedral(texture(uTexNormal, vTexCoord).rg);
    vec3 V = normalize(uViewPosition - worldPos);
    float NdotV = max(dot(N, V), 0.0);

    vec3 albedo = texture(uTexAlbedo, vTexCoord).rgb;
    vec3 orm = texture(uTexORM, vTexCoord).rgb;
    float occlusion = orm.r * texture(uTexSSAO, vTexCoord).r;
    float roughness = orm.g;
    float metalness = orm.b;

    vec3 F0 = mix(vec3(0.04), albedo, metalness);
    vec3 F = fresnelSchlickRoughness(NdotV, F0, roughness);
    vec3 kD = (vec3(1.0) - F) * (1.0 - metalness);

    vec3 diffuse;
    vec3 specular;

    if (uHasSkybox) {
        vec3 irrDir = rotateByQuat(N, uQuatSkybox);
        vec3 refDir = rotateByQuat(reflect(-V, N), uQuatSkybox);

        const float MAX_REFLECTION_LOD = 4.0;
        vec3 irradiance = texture(uCubeIrradiance, irrDir).rgb * uSkyEnergy;
        vec3 prefiltered = textureLod(uCubePrefilter, refDir, roughness * MAX_REFLECTION_LOD).rgb * uSkyEnergy;
        vec2 brdf = texture(uTexBrdfLut, vec2(NdotV, roughness)).rg;

        diffuse = kD * irradiance;
        specular = prefiltered * (F * brdf.x + brdf.y);
    } else {
        diffuse = kD * uColAmbient * uAmbientEnergy;
        specular = vec3(0.0);
    }

    vec3 indirect = texture(uTexSSIL, vTexCoord).rgb;
    outDiffuse = (diffuse + indirect) * occlusion;
    outSpecular = specular * occlusion;
}
`

/* === Compose (fold accumulation into the scene target) === */

const fsComposeSource = glslHeader + `
in vec2 vTexCoord;

uniform sampler2D uTexAlbedo;
uniform sampler2D uTexDiffuse;
uniform sampler2D uTexSpecular;
uniform sampler2D uTexSSR;
uniform sampler2D uTexDepth;
uniform bool uHasSSR;
uniform float uSSRIntensity;
uniform vec3 uColBackground;

layout(location = 0) out vec3 outColor;

void main()
{
    // Untouched depth means sky or background; the skybox pass overwrites
    // these pixels when a sky cubemap is set.
    if (texture(uTexDepth, vTexCoord).r >= 1.0) {
        outColor = uColBackground;
        return;
    }

    vec3 albedo = texture(uTexAlbedo, vTexCoord).rgb;
    vec3 diffuse = texture(uTexDiffuse, vTexCoord).rgb;
    vec3 specular = texture(uTexSpecular, vTexCoord).rgb;

    if (uHasSSR) {
        vec4 ssr = texture(uTexSSR, vTexCoord);
        specular = mix(specular, ssr.rgb, ssr.a * uSSRIntensity);
    }

    outColor = albedo * diffuse + specular;
}
`

/* === Skybox / background === */

const vsSkyboxSource = glslHeader + `
layout(location = 0) in vec3 aPosition;

uniform mat4 uMatProj;
uniform mat4 uMatView;

out vec3 vDirection;

void main()
{
    vDirection = aPosition;
    mat4 rotView = mat4(mat3(uMatView));
    vec4 pos = uMatProj * rotView * vec4(aPosition, 1.0);
    gl_Position = pos.xyww;
}
`

const fsSkyboxSource = glslHeader + `
in vec3 vDirection;

uniform samplerCube uTexSkybox;
uniform vec4 uRotation;
uniform float uSkyEnergy;

layout(location = 0) out vec3 outColor;

vec3 rotateByQuat(vec3 v, vec4 q)
{
    return v + 2.0 * cross(q.xyz, cross(q.xyz, v) + q.w * v);
}

void main()
{
    outColor = texture(uTexSkybox, rotateByQuat(normalize(vDirection), uRotation)).rgb * uSkyEnergy;
}
`

/* === Forward (transparency, capped light count) === */

const fsForwardSource = glslHeader + `
in vec2 vTexCoord;
in vec4 vColor;
in mat3 vTBN;
in vec3 vWorldPos;

struct ForwardLight {
    vec3 color;
    vec3 position;
    vec3 direction;
    float energy;
    float specular;
    float range;
    float attenuation;
    float innerCutOff;
    float outerCutOff;
    int type;
    bool enabled;
};

uniform ForwardLight uLights[8];
uniform sampler2D uTexAlbedo;
uniform sampler2D uTexNormal;
uniform sampler2D uTexEmission;
uniform sampler2D uTexORM;
uniform vec4 uColAlbedo;
uniform vec3 uColEmission;
uniform float uValEmission;
uniform float uValRoughness;
uniform float uValMetalness;
uniform float uAlphaCutoff;
uniform vec3 uColAmbient;
uniform float uAmbientEnergy;
uniform vec3 uViewPosition;

layout(location = 0) out vec4 outColor;
` + glslPBR + `
void main()
{
    vec4 albedo = texture(uTexAlbedo, vTexCoord) * uColAlbedo * vColor;
    if (albedo.a < uAlphaCutoff) discard;

    vec3 tangentNormal = texture(uTexNormal, vTexCoord).rgb * 2.0 - 1.0;
    vec3 N = normalize(vTBN * tangentNormal);
    vec3 V = normalize(uViewPosition - vWorldPos);
    float NdotV = max(dot(N, V), 0.0);

    vec3 orm = texture(uTexORM, vTexCoord).rgb;
    float roughness = max(orm.g * uValRoughness, 0.05);
    float metalness = orm.b * uValMetalness;
    vec3 F0 = mix(vec3(0.04), albedo.rgb, metalness);

    vec3 color = albedo.rgb * uColAmbient * uAmbientEnergy;

    for (int i = 0; i < 8; i++) {
        if (!uLights[i].enabled) continue;

        vec3 L;
        float attenuation = 1.0;

        if (uLights[i].type == 0) {
            L = -uLights[i].direction;
        } else {
            vec3 toLight = uLights[i].position - vWorldPos;
            float dist = length(toLight);
            if (dist > uLights[i].range) continue;
            L = toLight / dist;
            attenuation = pow(clamp(1.0 - dist / uLights[i].range, 0.0, 1.0), uLights[i].attenuation);

            if (uLights[i].type == 1) {
                float theta = dot(L, -uLights[i].direction);
                float epsilon = uLights[i].innerCutOff - uLights[i].outerCutOff;
                attenuation *= clamp((theta - uLights[i].outerCutOff) / epsilon, 0.0, 1.0);
            }
        }

        float NdotL = max(dot(N, L), 0.0);
        if (NdotL <= 0.0 || attenuation <= 0.0) continue;

        vec3 H = normalize(V + L);
        float NdotH = max(dot(N, H), 0.0);

        float D = distributionGGX(NdotH, roughness);
        float G = geometrySmith(NdotV, NdotL, roughness);
        vec3 F = fresnelSchlick(max(dot(H, V), 0.0), F0);
        vec3 kD = (vec3(1.0) - F) * (1.0 - metalness);

        vec3 radiance = uLights[i].color * uLights[i].energy * attenuation * NdotL;
        vec3 specular = (D * G * F) / max(4.0 * NdotV * NdotL, 0.0001) * uLights[i].specular;
        color += (kD * albedo.rgb / PI + specular) * radiance;
    }

    color += texture(uTexEmission, vTexCoord).rgb * uColEmission * uValEmission;
    outColor = vec4(color, albedo.a);
}
`

/* === Bloom (progressive down/up sampling) === */

const fsBloomDownSource = glslHeader + `
in vec2 vTexCoord;

uniform sampler2D uTexture;
uniform vec2 uTexelSize;
uniform int uMipLevel;
uniform float uThreshold;

layout(location = 0) out vec3 outColor;

vec3 karisAverage(vec3 a, vec3 b, vec3 c, vec3 d)
{
    float wa = 1.0 / (1.0 + dot(a, vec3(0.2126, 0.7152, 0.0722)));
    float wb = 1.0 / (1.0 + dot(b, vec3(0.2126, 0.7152, 0.0722)));
    float wc = 1.0 / (1.0 + dot(c, vec3(0.2126, 0.7152, 0.0722)));
    float wd = 1.0 / (1.0 + dot(d, vec3(0.2126, 0.7152, 0.0722)));
    return (a * wa + b * wb + c * wc + d * wd) / (wa + wb + wc + wd);
}

void main()
{
    float x = uTexelSize.x;
    float y = uTexelSize.y;

    // 13-tap downsample in the CoD: Advanced Warfare arrangement.
    vec3 a = texture(uTexture, vTexCoord + vec2(-2.0 * x,  2.0 * y)).rgb;
    vec3 b = texture(uTexture, vTexCoord + vec2(     0.0,  2.0 * y)).rgb;
    vec3 c = texture(uTexture, vTexCoord + vec2( 2.0 * x,  2.0 * y)).rgb;
    vec3 d = texture(uTexture, vTexCoord + vec2(-2.0 * x,      0.0)).rgb;
    vec3 e = texture(uTexture, vTexCoord).rgb;
    vec3 f = texture(uTexture, vTexCoord + vec2( 2.0 * x,      0.0)).rgb;
    vec3 g = texture(uTexture, vTexCoord + vec2(-2.0 * x, -2.0 * y)).rgb;
    vec3 h = texture(uTexture, vTexCoord + vec2(     0.0, -2.0 * y)).rgb;
    vec3 i = texture(uTexture, vTexCoord + vec2( 2.0 * x, -2.0 * y)).rgb;
    vec3 j = texture(uTexture, vTexCoord + vec2(-x,  y)).rgb;
    vec3 k = texture(uTexture, vTexCoord + vec2( x,  y)).rgb;
    vec3 l = texture(uTexture, vTexCoord + vec2(-x, -y)).rgb;
    vec3 m = texture(uTexture, vTexCoord + vec2( x, -y)).rgb;

    vec3 color;
    if (uMipLevel == 0) {
        // Karis average per quad to tame fireflies on the first reduction.
        color  = karisAverage(j, k, l, m) * 0.5;
        color += karisAverage(a, b, d, e) * 0.125;
        color += karisAverage(b, c, e, f) * 0.125;
        color += karisAverage(d, e, g, h) * 0.125;
        color += karisAverage(e, f, h, i) * 0.125;

        float brightness = max(max(color.r, color.g), color.b);
        color *= smoothstep(uThreshold * 0.5, uThreshold, brightness);
    } else {
        color = e * 0.125;
        color += (a + c + g + i) * 0.03125;
        color += (b + d + f + h) * 0.0625;
        color += (j + k + l + m) * 0.125;
    }

    outColor = max(color, vec3(0.0001));
}
`

const fsBloomUpSource = glslHeader + `
in vec2 vTexCoord;

uniform sampler2D uTexture;
uniform float uFilterRadius;

layout(location = 0) out vec3 outColor;

void main()
{
    float x = uFilterRadius;
    float y = uFilterRadius;

    vec3 a = texture(uTexture, vTexCoord + vec2(-x,  y)).rgb;
    vec3 b = texture(uTexture, vTexCoord + vec2(0.0, y)).rgb;
    vec3 c = texture(uTexture, vTexCoord + vec2( x,  y)).rgb;
    vec3 d = texture(uTexture, vTexCoord + vec2(-x, 0.0)).rgb;
    vec3 e = texture(uTexture, vTexCoord).rgb;
    vec3 f = texture(uTexture, vTexCoord + vec2( x, 0.0)).rgb;
    vec3 g = texture(uTexture, vTexCoord + vec2(-x, -y)).rgb;
    vec3 h = texture(uTexture, vTexCoord + vec2(0.0, -y)).rgb;
    vec3 i = texture(uTexture, vTexCoord + vec2( x, -y)).rgb;

    // 3x3 tent filter.
    outColor = e * 4.0;
    outColor += (b + d + f + h) * 2.0;
    outColor += (a + c + g + i);
    outColor /= 16.0;
}
`

/* === Fog === */

const fsFogSource = glslHeader + `
in vec2 vTexCoord;

uniform sampler2D uTexSceneHDR;
uniform sampler2D uTexSceneDepth;
uniform float uNear;
uniform float uFar;
uniform int uFogMode;
uniform vec3 uFogColor;
uniform float uFogStart;
uniform float uFogEnd;
uniform float uFogDensity;

layout(location = 0) out vec3 outColor;

float linearizeDepth(float depth)
{
    float z = depth * 2.0 - 1.0;
    return (2.0 * uNear * uFar) / (uFar + uNear - z * (uFar - uNear));
}

void main()
{
    vec3 color = texture(uTexSceneHDR, vTexCoord).rgb;
    float depth = texture(uTexSceneDepth, vTexCoord).r;

    if (depth >= 1.0) {
        outColor = color;
        return;
    }

    float dist = linearizeDepth(depth);
    float factor = 0.0;

    if (uFogMode == 1) {
        factor = clamp((dist - uFogStart) / (uFogEnd - uFogStart), 0.0, 1.0);
    } else if (uFogMode == 2) {
        factor = 1.0 - exp(-uFogDensity * dist);
    } else if (uFogMode == 3) {
        factor = 1.0 - exp(-uFogDensity * uFogDensity * dist * dist);
    }

    outColor = mix(color, uFogColor, factor);
}
`

/* === Depth of field === */

const fsDOFSource = glslHeader + `
in vec2 vTexCoord;

uniform sampler2D uTexSceneHDR;
uniform sampler2D uTexSceneDepth;
uniform float uNear;
uniform float uFar;
uniform float uFocusDistance;
uniform float uFocusRange;
uniform vec2 uTexelSize;

layout(location = 0) out vec3 outColor;

float linearizeDepth(float depth)
{
    float z = depth * 2.0 - 1.0;
    return (2.0 * uNear * uFar) / (uFar + uNear - z * (uFar - uNear));
}

void main()
{
    float depth = linearizeDepth(texture(uTexSceneDepth, vTexCoord).r);
    float coc = clamp(abs(depth - uFocusDistance) / uFocusRange, 0.0, 1.0);

    vec3 sharp = texture(uTexSceneHDR, vTexCoord).rgb;
    if (coc <= 0.001) {
        outColor = sharp;
        return;
    }

    // Poisson-ish 8-tap disc scaled by the circle of confusion.
    const vec2 TAPS[8] = vec2[](
        vec2( 0.7071,  0.7071), vec2(-0.7071,  0.7071),
        vec2( 0.7071, -0.7071), vec2(-0.7071, -0.7071),
        vec2( 1.0,  0.0), vec2(-1.0,  0.0),
        vec2( 0.0,  1.0), vec2( 0.0, -1.0));

    vec3 blurred = sharp;
    for (int i = 0; i < 8; i++) {
        blurred += texture(uTexSceneHDR, vTexCoord + TAPS[i] * uTexelSize * coc * 4.0).rgb;
    }
    blurred /= 9.0;

    outColor = mix(sharp, blurred, coc);
}
`

/* === Tonemap + bloom mix + color adjustment === */

const fsTonemapSource = glslHeader + `
in vec2 vTexCoord;

uniform sampler2D uTexSceneHDR;
uniform sampler2D uTexBloomBlurHDR;
uniform int uBloomMode;
uniform float uBloomIntensity;
uniform int uTonemapMode;
uniform float uTonemapExposure;
uniform float uTonemapWhite;
uniform float uBrightness;
uniform float uContrast;
uniform float uSaturation;

layout(location = 0) out vec3 outColor;

vec3 tonemapReinhard(vec3 color, float white)
{
    float luma = dot(color, vec3(0.2126, 0.7152, 0.0722));
    float mapped = luma * (1.0 + luma / (white * white)) / (1.0 + luma);
    return color * (mapped / max(luma, 0.0001));
}

vec3 tonemapFilmic(vec3 color)
{
    color = max(vec3(0.0), color - 0.004);
    return pow((color * (6.2 * color + 0.5)) / (color * (6.2 * color + 1.7) + 0.06), vec3(2.2));
}

vec3 tonemapACES(vec3 color)
{
    const float a = 2.51;
    const float b = 0.03;
    const float c = 2.43;
    const float d = 0.59;
    const float e = 0.14;
    return clamp((color * (a * color + b)) / (color * (c * color + d) + e), 0.0, 1.0);
}

void main()
{
    vec3 color = texture(uTexSceneHDR, vTexCoord).rgb;

    if (uBloomMode != 0) {
        vec3 bloom = texture(uTexBloomBlurHDR, vTexCoord).rgb * uBloomIntensity;
        if (uBloomMode == 1) {
            color = mix(color, bloom, 0.04);
        } else if (uBloomMode == 2) {
            color += bloom;
        } else {
            color = 1.0 - (1.0 - color) * (1.0 - bloom);
        }
    }

    color *= uTonemapExposure;

    if (uTonemapMode == 1) {
        color = tonemapReinhard(color, uTonemapWhite);
    } else if (uTonemapMode == 2) {
        color = tonemapFilmic(color);
    } else if (uTonemapMode == 3) {
        color = tonemapACES(color);
    }

    color = pow(color, vec3(1.0 / 2.2));

    color = (color - 0.5) * uContrast + 0.5;
    color *= uBrightness;
    float luma = dot(color, vec3(0.2126, 0.7152, 0.0722));
    color = mix(vec3(luma), color, uSaturation);

    outColor = clamp(color, 0.0, 1.0);
}
`

/* === FXAA === */

const fsFXAASource = glslHeader + `
in vec2 vTexCoord;

uniform sampler2D uTexture;
uniform vec2 uTexelSize;

layout(location = 0) out vec3 outColor;

#define FXAA_SPAN_MAX   8.0
#define FXAA_REDUCE_MUL (1.0 / 8.0)
#define FXAA_REDUCE_MIN (1.0 / 128.0)

void main()
{
    vec3 rgbNW = texture(uTexture, vTexCoord + vec2(-1.0, -1.0) * uTexelSize).rgb;
    vec3 rgbNE = texture(uTexture, vTexCoord + vec2( 1.0, -1.0) * uTexelSize).rgb;
    vec3 rgbSW = texture(uTexture, vTexCoord + vec2(-1.0,  1.0) * uTexelSize).rgb;
    vec3 rgbSE = texture(uTexture, vTexCoord + vec2( 1.0,  1.0) * uTexelSize).rgb;
    vec3 rgbM  = texture(uTexture, vTexCoord).rgb;

    const vec3 LUMA = vec3(0.299, 0.587, 0.114);
    float lumaNW = dot(rgbNW, LUMA);
    float lumaNE = dot(rgbNE, LUMA);
    float lumaSW = dot(rgbSW, LUMA);
    float lumaSE = dot(rgbSE, LUMA);
    float lumaM  = dot(rgbM, LUMA);

    float lumaMin = min(lumaM, min(min(lumaNW, lumaNE), min(lumaSW, lumaSE)));
    float lumaMax = max(lumaM, max(max(lumaNW, lumaNE), max(lumaSW, lumaSE)));

    vec2 dir = vec2(
        -((lumaNW + lumaNE) - (lumaSW + lumaSE)),
        ((lumaNW + lumaSW) - (lumaNE + lumaSE)));

    float dirReduce = max((lumaNW + lumaNE + lumaSW + lumaSE) * 0.25 * FXAA_REDUCE_MUL, FXAA_REDUCE_MIN);
    float rcpDirMin = 1.0 / (min(abs(dir.x), abs(dir.y)) + dirReduce);

    dir = clamp(dir * rcpDirMin, vec2(-FXAA_SPAN_MAX), vec2(FXAA_SPAN_MAX)) * uTexelSize;

    vec3 rgbA = 0.5 * (
        texture(uTexture, vTexCoord + dir * (1.0 / 3.0 - 0.5)).rgb +
        texture(uTexture, vTexCoord + dir * (2.0 / 3.0 - 0.5)).rgb);
    vec3 rgbB = rgbA * 0.5 + 0.25 * (
        texture(uTexture, vTexCoord + dir * -0.5).rgb +
        texture(uTexture, vTexCoord + dir * 0.5).rgb);

    float lumaB = dot(rgbB, LUMA);
    outColor = (lumaB < lumaMin || lumaB > lumaMax) ? rgbA : rgbB;
}
`

/* === Final output (debug views + dither) === */

const fsOutputSource = glslHeader + `
in vec2 vTexCoord;

uniform sampler2D uTexture;
uniform sampler2D uTexAlbedo;
uniform sampler2D uTexNormal;
uniform sampler2D uTexDepth;
uniform sampler2D uTexSSAO;
uniform int uViewMode;
uniform bool uDither;
uniform float uNear;
uniform float uFar;

layout(location = 0) out vec4 outColor;
` + glslOctahedral + `
float rand(vec2 co)
{
    return fract(sin(dot(co, vec2(12.9898, 78.233))) * 43758.5453);
}

void main()
{
    vec3 color;

    if (uViewMode == 1) {
        color = texture(uTexAlbedo, vTexCoord).rgb;
    } else if (uViewMode == 2) {
        color = decodeOctahedral(texture(uTexNormal, vTexCoord).rg) * 0.5 + 0.5;
    } else if (uViewMode == 3) {
        float z = texture(uTexDepth, vTexCoord).r * 2.0 - 1.0;
        float linear = (2.0 * uNear * uFar) / (uFar + uNear - z * (uFar - uNear));
        color = vec3(linear / uFar);
    } else if (uViewMode == 4) {
        color = vec3(texture(uTexSSAO, vTexCoord).r);
    } else {
        color = texture(uTexture, vTexCoord).rgb;
    }

    if (uDither) {
        color += (rand(gl_FragCoord.xy) - 0.5) / 255.0;
    }

    outColor = vec4(color, 1.0);
}
`
